package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/service"
)

var (
	recomputeID       string
	recomputeReviewer string
	recomputeWorkers  int
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Re-derive confidence, priority and escalation",
	Long: `Without --id, refreshes every open report so age-based priority and
persistence escalation catch up; reviewer overrides are kept.

With --id and --reviewer, performs an explicit recompute of one report on behalf
of that reviewer, which clears its overrides.`,
	RunE: runRecompute,
}

func init() {
	recomputeCmd.Flags().StringVar(&recomputeID, "id", "", "report id to recompute")
	recomputeCmd.Flags().StringVar(&recomputeReviewer, "reviewer", "", "reviewer id performing an explicit recompute")
	recomputeCmd.Flags().IntVar(&recomputeWorkers, "workers", 4, "concurrent refreshes when no --id is given")
}

func runRecompute(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	reviewer := service.NewReviewerService(a.repo, a.engines, a.clock, a.logger)

	if recomputeID != "" {
		actor, err := models.Reviewer(recomputeReviewer)
		if err != nil {
			return fmt.Errorf("--reviewer: %w", err)
		}
		r, err := reviewer.Recompute(ctx, recomputeID, actor)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s confidence=%s priority=%d escalated=%v\n",
			r.ID, r.Confidence, *r.PriorityScore, r.EscalationFlag)
		return nil
	}

	total, failed, err := reviewer.RefreshOpen(ctx, recomputeWorkers)
	if err != nil {
		return err
	}
	a.logger.Info("Refresh complete", zap.Int("reports", total), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed to refresh", failed, total)
	}
	return nil
}
