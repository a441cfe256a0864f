package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type recomputeOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

// recompute re-derives a step's status (and the chain status) from the
// persisted decisions. It is the repair tool for manual data fixes:
// safe to run any number of times.
func newRecomputeCmd() *cobra.Command {
	var (
		tenantID   string
		artifactID string
		chainID    string
		stepID     string
	)

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Re-derive step and chain status from persisted decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			aid, err := uuid.Parse(artifactID)
			if err != nil {
				return fmt.Errorf("invalid --artifact: %w", err)
			}
			cid, err := uuid.Parse(chainID)
			if err != nil {
				return fmt.Errorf("invalid --chain: %w", err)
			}
			sid, err := uuid.Parse(stepID)
			if err != nil {
				return fmt.Errorf("invalid --step: %w", err)
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			log := newLogger()
			svc := newService(log)
			ctx := cliContext(cmd.Context(), pool, tid)

			start := time.Now()
			result, err := svc.Recompute(ctx, aid, cid, sid)
			if err != nil {
				return err
			}
			svc.Flush()
			return writeJSON(recomputeOutput{
				Command:    "recompute",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     result,
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&artifactID, "artifact", "", "Artifact UUID (required)")
	cmd.Flags().StringVar(&chainID, "chain", "", "Chain UUID (required)")
	cmd.Flags().StringVar(&stepID, "step", "", "Step UUID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("artifact")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("step")
	return cmd
}
