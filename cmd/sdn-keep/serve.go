package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacedatanetwork/sdn-keep/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API",
	Long: `Serve the keep administration API until interrupted. The listen address
comes from admin.listen in the config unless --listen is given.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withKeeps(func(k *keeps) error {
		addr := k.cfg.Admin.Listen
		if serveListen != "" {
			addr = serveListen
		}
		if addr == "" {
			return fmt.Errorf("no listen address: pass --listen or set admin.listen in the config")
		}

		if k.safe.AutoAccept() {
			log.Warn("auto_accept is enabled; new peers presenting keys will be accepted without review")
		}
		k.safe.RecordConfig()

		handler := api.NewAPIHandler(k.safe, k.road)
		handler.SetAllowedOrigins(k.cfg.Admin.AllowedOrigins)
		server := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Keep API available at http://%s/api/remotes", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
