package wire_test

import (
	"bytes"
	"net"
	"testing"

	"github.com/gobwas/ws/wsutil"

	"github.com/boltkit/stubserver/internal/wire"
)

func TestWebSocket_ImplementsInterface(t *testing.T) {
	var _ wire.Wire = (*wire.WebSocket)(nil)
}

func TestWebSocket_ReadSpansMessages(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	w := wire.NewWebSocket(server)

	go func() {
		// Two binary messages; Read(6) must stitch them together.
		wsutil.WriteClientBinary(client, []byte{0x60, 0x60, 0xB0, 0x17})
		wsutil.WriteClientBinary(client, []byte{0x00, 0x01})
	}()

	data, err := w.Read(6)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if want := []byte{0x60, 0x60, 0xB0, 0x17, 0x00, 0x01}; !bytes.Equal(data, want) {
		t.Errorf("Read(6) = % X, want % X", data, want)
	}
}

func TestWebSocket_ReadLeavesRemainder(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	w := wire.NewWebSocket(server)

	go func() {
		wsutil.WriteClientBinary(client, []byte{0x01, 0x02, 0x03, 0x04})
	}()

	first, err := w.Read(2)
	if err != nil {
		t.Fatalf("first Read() error = %v", err)
	}
	// The remainder is served without touching the connection again.
	second, err := w.Read(2)
	if err != nil {
		t.Fatalf("second Read() error = %v", err)
	}
	if !bytes.Equal(first, []byte{0x01, 0x02}) || !bytes.Equal(second, []byte{0x03, 0x04}) {
		t.Errorf("reads = % X, % X; want 01 02 and 03 04", first, second)
	}
}

func TestWebSocket_SendEmitsOneBinaryMessage(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	w := wire.NewWebSocket(server)

	done := make(chan error, 1)
	go func() {
		if err := w.Write([]byte{0x00, 0x00}); err != nil {
			done <- err
			return
		}
		if err := w.Write([]byte{0x04, 0x04}); err != nil {
			done <- err
			return
		}
		done <- w.Send()
	}()

	data, err := wsutil.ReadServerBinary(client)
	if err != nil {
		t.Fatalf("client read error: %v", err)
	}
	if want := []byte{0x00, 0x00, 0x04, 0x04}; !bytes.Equal(data, want) {
		t.Errorf("client received % X, want % X", data, want)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}
