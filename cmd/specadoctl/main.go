// Command specadoctl is a thin demo server exposing Specado's Translate and
// HTTPClient entry points as POST /v1/translate and POST /v1/execute.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/specado/specado/internal/specadoapi"
)

var version = "dev"

func runHealthCheck(addr string) error {
	resp, err := http.Get(fmt.Sprintf("http://localhost%s/healthz", addr))
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func loadConfig() specadoapi.Config {
	cfg := specadoapi.DefaultConfig()
	if addr := os.Getenv("SPECADOCTL_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if level := os.Getenv("SPECADOCTL_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if enabled, err := strconv.ParseBool(os.Getenv("SPECADOCTL_OTEL_ENABLED")); err == nil {
		cfg.OTelEnabled = enabled
	}
	if endpoint := os.Getenv("SPECADOCTL_OTEL_ENDPOINT"); endpoint != "" {
		cfg.OTelEndpoint = endpoint
	}
	return cfg
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-healthcheck" {
		addr := os.Getenv("SPECADOCTL_LISTEN_ADDR")
		if addr == "" {
			addr = ":8090"
		}
		if err := runHealthCheck(addr); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	log.Printf("specadoctl version %s", version)
	cfg := loadConfig()

	srv, err := specadoapi.NewServer(cfg)
	if err != nil {
		log.Fatalf("server init error: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		WriteTimeout:      300 * time.Second,
	}
	srv.SetHTTPServer(httpServer)

	go func() {
		log.Printf("specadoctl listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("shutting down (draining in-flight requests)...")

	if err := srv.Close(); err != nil {
		log.Printf("server close error: %v", err)
	}
}
