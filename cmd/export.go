package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blogwatch/internal/export"
	"github.com/sells-group/blogwatch/internal/model"
)

var (
	exportCompetitor string
	exportFormat     string
	exportCombined   bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export enriched posts to report files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		env, err := newEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		targets, err := selectTargets(exportCompetitor)
		if err != nil {
			return err
		}

		exporter := export.New(cfg.Export)

		var combined []model.Post
		for _, comp := range targets {
			posts, err := env.store.LoadProcessed(ctx, comp.Name)
			if err != nil {
				return err
			}
			if len(posts) == 0 {
				zap.L().Warn("no processed posts to export", zap.String("competitor", comp.Name))
				continue
			}

			if exportCombined {
				combined = append(combined, posts...)
				continue
			}
			if _, err := exporter.Export(posts, comp.Name, format); err != nil {
				return err
			}
		}

		if exportCombined {
			if len(combined) == 0 {
				return eris.New("no processed posts to export")
			}
			if _, err := exporter.Export(combined, export.CombinedName, format); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCompetitor, "competitor", "", "export a single competitor by name")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: txt, md, json, csv or xlsx")
	exportCmd.Flags().BoolVar(&exportCombined, "combined", false, "write one file covering all selected competitors")
	rootCmd.AddCommand(exportCmd)
}
