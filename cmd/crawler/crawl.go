package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/crawler"
	"github.com/user/animerank-crawler/internal/monitoring"
)

func newCrawlCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Collect detail links for a listing range and save one record file per item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := monitoring.NewMetrics(nil)
			p, err := buildPipeline(ctx, a.cfg, m, a.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			req := crawler.RunRequest{Start: a.cfg.StartOffset, Total: a.cfg.TotalItems, Force: force}
			report, runErr := p.crawler.Run(ctx, req)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			if runErr != nil && errors.Is(runErr, context.Canceled) {
				a.logger.Warn("crawl interrupted", zap.Error(runErr))
				return nil
			}
			return runErr
		},
	}

	cmd.Flags().Int("start", 0, "listing offset to start from (multiple of 50)")
	cmd.Flags().Int("total", 1000, "number of listing items to cover (positive multiple of 50)")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the recently-crawled set")
	_ = a.v.BindPFlag("START_OFFSET", cmd.Flags().Lookup("start"))
	_ = a.v.BindPFlag("TOTAL_ITEMS", cmd.Flags().Lookup("total"))
	return cmd
}
