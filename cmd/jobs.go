package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var jobsCompetitor string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect pending batch enrichment jobs",
}

var jobsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll pending batch jobs and consolidate finished ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := newEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		targets, err := selectTargets(jobsCompetitor)
		if err != nil {
			return err
		}

		var failed int
		for _, comp := range targets {
			if err := env.manager.Check(ctx, comp.Name); err != nil {
				zap.L().Error("jobs check failed",
					zap.String("competitor", comp.Name),
					zap.Error(err),
				)
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("%d of %d competitors failed the jobs check", failed, len(targets))
		}
		return nil
	},
}

func init() {
	jobsCheckCmd.Flags().StringVar(&jobsCompetitor, "competitor", "", "check a single competitor by name")
	jobsCmd.AddCommand(jobsCheckCmd)
	rootCmd.AddCommand(jobsCmd)
}
