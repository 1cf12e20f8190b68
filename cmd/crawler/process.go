package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/aggregate"
	"github.com/user/animerank-crawler/internal/export"
	"github.com/user/animerank-crawler/internal/monitoring"
	"github.com/user/animerank-crawler/internal/normalize"
)

func newProcessCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Aggregate saved record files, normalize them and write the CSV table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			m := monitoring.NewMetrics(nil)

			table, err := aggregate.LoadDir(ctx, cfg.DataDir)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", cfg.DataDir, err)
			}
			a.logger.Info("records aggregated",
				zap.Int("rows", len(table.Rows)),
				zap.Int("columns", len(table.Columns)),
			)

			records, err := normalize.New(a.logger.Named("normalize")).Normalize(table)
			if err != nil {
				return err
			}

			if err := export.WriteFile(cfg.OutputPath, records); err != nil {
				return err
			}
			m.AddRecordsExported(len(records))
			a.logger.Info("table written", zap.String("path", cfg.OutputPath), zap.Int("records", len(records)))

			if cfg.PostgresURL == "" {
				return nil
			}
			pg, err := openPostgres(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.SaveRecords(ctx, records); err != nil {
				return err
			}
			a.logger.Info("records upserted into postgres", zap.Int("records", len(records)))
			return nil
		},
	}

	cmd.Flags().String("data-dir", "", "directory holding the per-item record files")
	cmd.Flags().String("output", "", "path of the CSV table to write")
	_ = a.v.BindPFlag("DATA_DIR", cmd.Flags().Lookup("data-dir"))
	_ = a.v.BindPFlag("OUTPUT_PATH", cmd.Flags().Lookup("output"))
	return cmd
}
