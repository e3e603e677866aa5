package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/api"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API and sign-in callback server",
	Long: `Run a local HTTP server exposing the session and task operations, plus
the Google sign-in callback. The session follows credential changes made by
other todoctl processes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := auth.WatchCredentials(ctx, a.session, a.store.Dir()); err != nil {
			log.Warnf("Credential watcher stopped: %v", err)
		}
	}()

	srv := api.NewServer(cfg, a.session, a.tasks)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
