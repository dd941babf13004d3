package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blogwatch/internal/batch"
)

var (
	cleanCompetitor string
	cleanYes        bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Purge a competitor's batch workspace (tracking file and chunk snapshots)",
	Long: "Removes the per-competitor workspace directory, abandoning any pending " +
		"batch jobs it tracks. Use after a failed batch that was recovered manually.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanCompetitor == "" {
			return eris.New("--competitor is required")
		}
		if !cleanYes {
			return eris.New("refusing to purge without --yes: pending jobs tracked in the workspace would be abandoned")
		}

		ws := batch.NewWorkspace(cfg.Batch.WorkspaceDir)
		if err := ws.Purge(cleanCompetitor); err != nil {
			return err
		}
		fmt.Printf("purged workspace for %s\n", cleanCompetitor)
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanCompetitor, "competitor", "", "competitor whose workspace to purge (required)")
	cleanCmd.Flags().BoolVar(&cleanYes, "yes", false, "confirm the purge")
	rootCmd.AddCommand(cleanCmd)
}
