package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blogwatch/internal/scrape"
)

var (
	scrapeCompetitor string
	scrapeDays       int
	scrapeAll        bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape competitor blogs and enrich any new posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := newEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		targets, err := selectTargets(scrapeCompetitor)
		if err != nil {
			return err
		}

		results := env.pipeline.Run(ctx, targets, scrape.Options{Days: scrapeDays, All: scrapeAll})

		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
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
	scrapeCmd.Flags().StringVar(&scrapeCompetitor, "competitor", "", "scrape a single competitor by name")
	scrapeCmd.Flags().IntVar(&scrapeDays, "days", 30, "only keep posts published in the last N days")
	scrapeCmd.Flags().BoolVar(&scrapeAll, "all", false, "ignore the date window and keep everything")
	rootCmd.AddCommand(scrapeCmd)
}
