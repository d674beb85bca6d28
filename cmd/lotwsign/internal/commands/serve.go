package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vocdoni/gofirma/lotwsign/internal/bridge"
)

type ServeCmd struct {
	Listen       string   `help:"HTTP listen address" default:"127.0.0.1:8787" env:"LOTWSIGN_LISTEN"`
	CORSOrigins  []string `help:"allowed CORS origins (CORS disabled when empty)" env:"LOTWSIGN_CORS_ORIGINS"`
	MaxBodyBytes int64    `help:"maximum request body size in bytes" default:"16777216" env:"LOTWSIGN_MAX_BODY_BYTES"`
}

func (cmd *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	router, err := globals.router()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := bridge.NewHTTPHandler(router, bridge.HTTPOptions{
		AllowedOrigins: cmd.CORSOrigins,
		MaxBodyBytes:   cmd.MaxBodyBytes,
	})
	srv := bridge.NewServer(cmd.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cmd.Listen).Str("version", globals.Version).Msg("Starting HTTP bridge")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP bridge")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}

type StdioCmd struct{}

func (cmd *StdioCmd) Run(ctx context.Context, globals *Globals) error {
	router, err := globals.router()
	if err != nil {
		return err
	}
	log.Debug().Msg("serving JSON-lines calls on stdin")
	return bridge.ServeStdio(ctx, router, os.Stdin, globals.out())
}
