package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blogwatch/internal/pipeline"
)

var (
	enrichCompetitor string
	enrichWait       bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich already scraped posts that still lack enrichment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := newEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		env.manager.Wait = enrichWait

		targets, err := selectTargets(enrichCompetitor)
		if err != nil {
			return err
		}

		var results []pipeline.CompetitorResult
		var failed int
		for _, comp := range targets {
			res, err := env.pipeline.EnrichExisting(ctx, comp.Name)
			if err != nil {
				res.Error = err.Error()
				failed++
			}
			results = append(results, res)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return eris.Wrap(err, "encode results")
		}
		if failed > 0 {
			return eris.Errorf("%d of %d competitors failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichCompetitor, "competitor", "", "enrich a single competitor by name")
	enrichCmd.Flags().BoolVar(&enrichWait, "wait", false, "poll batch jobs to completion instead of returning after submission")
	rootCmd.AddCommand(enrichCmd)
}
