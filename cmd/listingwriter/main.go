// Command listingwriter serves the browser form that turns listing details
// and photos into a real-estate blog post.
//
// Usage:
//
//	export GOOGLE_API_KEY="your-api-key"   # or put it in .env
//	go run ./cmd/listingwriter -config listingwriter.yaml
//
// Without a key the web form asks for one.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nstogner/listingwriter/pkg/config"
	"github.com/nstogner/listingwriter/pkg/credential"
	"github.com/nstogner/listingwriter/pkg/server"
	"github.com/nstogner/listingwriter/pkg/session"
	"github.com/nstogner/listingwriter/web"
)

func main() {
	configPath := flag.String("config", "listingwriter.yaml", "path to the YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	// Setup logger.
	opts := &slog.HandlerOptions{Level: config.ParseLevel(os.Getenv("LOG_LEVEL"))}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	// Config.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(func(ctx context.Context, apiKey string) (*session.Session, error) {
		return session.Open(ctx, cfg, apiKey)
	}, web.DistFS)

	// Credentials from the environment or the secret file. The browser asks
	// for a key when neither has one.
	if err := credential.LoadEnvFile(cfg.EnvFile); err != nil {
		slog.Error("Failed to load secrets", "error", err)
		os.Exit(1)
	}
	if apiKey := credential.Lookup(); apiKey != "" {
		sess, err := session.Open(ctx, cfg, apiKey)
		if err != nil {
			slog.Error("Key setup failed", "error", err)
			os.Exit(1)
		}
		srv.SetSession(sess)
	} else {
		slog.Info("No API key configured, the web form will ask for one")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
