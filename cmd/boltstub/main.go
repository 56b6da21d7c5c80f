package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/boltkit/stubserver/internal/config"
	"github.com/boltkit/stubserver/internal/logging"
	"github.com/boltkit/stubserver/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML stub script config")
	addr := flag.String("addr", "", "Listen address override (e.g. :7687)")
	version := flag.String("version", "", "Protocol version override (e.g. 4.4)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		logging.EnableDebug()
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logging.Errorf("Failed to load config: %v", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *version != "" {
		cfg.Version = *version
	}

	srv, err := server.New(cfg)
	if err != nil {
		logging.Errorf("Failed to create server: %v", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			logging.Errorf("Server error: %v", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		logging.Infof("Received signal %v, shutting down...", sig)
		srv.Stop()
	}

	logging.Infof("Stub server stopped")
}
