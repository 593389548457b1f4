package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/handoff/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session server",
	Long: `Starts the engine as an HTTP server exposing the session API,
Prometheus metrics on /metrics and per-session event streams.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp(cmd)
		defer a.close()

		if port, _ := cmd.Flags().GetString("port"); port != "" {
			a.cfg.Listen = ":" + port
		}

		handler := httpAdapter.NewHandler(a.engine.Manager,
			httpAdapter.WithBroadcaster(a.engine.Broadcaster),
			httpAdapter.WithGatherer(a.registry),
			httpAdapter.WithLogger(a.logger),
		)

		srv := &http.Server{
			Addr:              a.cfg.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			startWatcher(ctx, a)
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting Handoff Server on %s\n", srv.Addr)
			fmt.Printf("Serving scopes from: %s (%s)\n", a.cfg.ConfigDir, a.cfg.Source)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)
			cancel()

			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()

			if err := srv.Shutdown(sctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Handoff Server stopped gracefully")
		}
	},
}

// startWatcher reloads the live sessions of a scope whenever one of its
// documents changes. Only the loam source can be watched.
func startWatcher(ctx context.Context, a *app) {
	if a.loam == nil {
		a.logger.Warn("watch requires the loam source, ignoring", "source", a.cfg.Source)
		return
	}
	scopes, err := a.loam.Watch(ctx)
	if err != nil {
		a.logger.Warn("failed to watch scopes", "err", err)
		return
	}
	go func() {
		for scope := range scopes {
			if err := a.engine.Manager.ReloadScope(ctx, scope); err != nil {
				a.logger.Warn("scope reload failed", "scope", scope, "err", err)
				continue
			}
			a.logger.Info("scope reloaded", "scope", scope)
		}
	}()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides listen)")
	serveCmd.Flags().Bool("watch", false, "Reload sessions when scope documents change (loam source)")
}
