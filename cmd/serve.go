package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/caseflow"
	"github.com/riftfin/riftcore/internal/gate"
	"github.com/riftfin/riftcore/internal/pricing"
	"github.com/riftfin/riftcore/internal/riftscore"
	"github.com/riftfin/riftcore/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "serve: migrate store")
		}
		if env.Ledger != nil {
			if err := env.Ledger.Migrate(ctx); err != nil {
				return eris.Wrap(err, "serve: migrate ledger")
			}
		}

		srv := server.New(env.Store, env.Adapter,
			riftscore.New(env.Store, cfg.Score),
			pricing.New(cfg.Pricing),
			caseflow.New(env.Store, env.Adapter),
			gate.New(env.Store, env.Adapter, cfg.Gate),
			env.Ledger,
			cfg.Server,
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("store", cfg.Store.Driver))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
