package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type stepOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newStepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Administrative step actions",
	}
	cmd.AddCommand(newStepSkipCmd())
	cmd.AddCommand(newStepReopenCmd())
	return cmd
}

func newStepSkipCmd() *cobra.Command {
	var (
		tenantID string
		stepID   string
		actorID  string
	)

	cmd := &cobra.Command{
		Use:   "skip",
		Short: "Skip the currently actionable step (opens the next gate)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, sid, actor, err := parseStepArgs(tenantID, stepID, actorID)
			if err != nil {
				return err
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := newService(newLogger())
			ctx := cliContext(cmd.Context(), pool, tid)

			start := time.Now()
			result, err := svc.SkipStep(ctx, sid, actor)
			if err != nil {
				return err
			}
			svc.Flush()
			return writeJSON(stepOutput{
				Command:    "step skip",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     result,
			})
		},
	}

	addStepFlags(cmd, &tenantID, &stepID, &actorID)
	return cmd
}

func newStepReopenCmd() *cobra.Command {
	var (
		tenantID string
		stepID   string
		actorID  string
	)

	cmd := &cobra.Command{
		Use:   "reopen",
		Short: "Reopen a resolved step for a fresh round of decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, sid, actor, err := parseStepArgs(tenantID, stepID, actorID)
			if err != nil {
				return err
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := newService(newLogger())
			ctx := cliContext(cmd.Context(), pool, tid)

			start := time.Now()
			result, err := svc.ReopenStep(ctx, sid, actor)
			if err != nil {
				return err
			}
			svc.Flush()
			return writeJSON(stepOutput{
				Command:    "step reopen",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     result,
			})
		},
	}

	addStepFlags(cmd, &tenantID, &stepID, &actorID)
	return cmd
}

func parseStepArgs(tenantID, stepID, actorID string) (uuid.UUID, uuid.UUID, uuid.UUID, error) {
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, fmt.Errorf("invalid --tenant: %w", err)
	}
	sid, err := uuid.Parse(stepID)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, fmt.Errorf("invalid --step: %w", err)
	}
	actor, err := uuid.Parse(actorID)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, fmt.Errorf("invalid --actor: %w", err)
	}
	return tid, sid, actor, nil
}

func addStepFlags(cmd *cobra.Command, tenantID, stepID, actorID *string) {
	cmd.Flags().StringVar(tenantID, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(stepID, "step", "", "Step UUID (required)")
	cmd.Flags().StringVar(actorID, "actor", "", "Acting user UUID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("step")
	_ = cmd.MarkFlagRequired("actor")
}
