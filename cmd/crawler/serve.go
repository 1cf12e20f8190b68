package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/api"
	"github.com/user/animerank-crawler/internal/crawler"
	"github.com/user/animerank-crawler/internal/monitoring"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API that starts crawl runs in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := monitoring.NewMetrics(reg)

			p, err := buildPipeline(ctx, a.cfg, m, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			checks := map[string]api.Pinger{}
			if p.redis != nil {
				checks["redis"] = p.redis
			}
			if p.postgres != nil {
				checks["postgres"] = p.postgres
			}

			coord := crawler.NewCoordinator(context.Background(), p.crawler, m, logger.Named("coordinator"))
			server := api.NewServer(a.cfg.ServerPort, coord, checks, reg, m, logger.Named("api"))
			if p.postgres != nil {
				server.WithFailures(p.postgres)
			}

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()
			logger.Info("server started", zap.String("port", a.cfg.ServerPort))

			select {
			case <-ctx.Done():
			case err := <-errCh:
				coord.Stop()
				return err
			}

			logger.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			coord.Stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			logger.Info("server exiting")
			return nil
		},
	}

	cmd.Flags().String("port", "", "port for the HTTP API")
	_ = a.v.BindPFlag("SERVER_PORT", cmd.Flags().Lookup("port"))
	return cmd
}
