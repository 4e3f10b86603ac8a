package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/lead-push/api/handlers"
	"github.com/linesmerrill/lead-push/api/scheduler"
	"github.com/linesmerrill/lead-push/config"
	"github.com/linesmerrill/lead-push/logging"
	"github.com/linesmerrill/lead-push/transport"
)

func main() {
	root := &cobra.Command{
		Use:   "lead-push",
		Short: "Push notification delivery and device registry for the lead tracker",
	}
	root.AddCommand(serveCmd(), vapidKeysCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the push API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := handlers.App{}
			a.Config = *config.New()
			defer zap.L().Sync()

			if err := a.Initialize(); err != nil { //initialize database and router
				return err
			}

			s := scheduler.NewScheduler(a.Registry, logging.New("scheduler"))
			if err := s.Start(a.Config.HealthCron); err != nil {
				return err
			}
			defer s.Stop()

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%v", a.Config.Port),
				Handler:           a.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				zap.S().Infow("lead-push is up and running",
					"port", a.Config.Port,
					"url", a.Config.BaseURL,
				)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.S().Errorw("failed to shut down cleanly", "error", err)
			}
			return a.Close(shutdownCtx)
		},
	}
}

func vapidKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey, privateKey, err := transport.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
			return nil
		},
	}
}
