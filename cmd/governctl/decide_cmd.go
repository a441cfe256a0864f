package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quorumworks/govern-sdk/modules/governance/services"
)

type decideOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newDecideCmd() *cobra.Command {
	var (
		tenantID     string
		projectID    string
		artifactType string
		artifactID   string
		actorID      string
		decision     string
		reason       string
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Record an approval decision on an artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			pid, err := uuid.Parse(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			aid, err := uuid.Parse(artifactID)
			if err != nil {
				return fmt.Errorf("invalid --artifact: %w", err)
			}
			actor, err := uuid.Parse(actorID)
			if err != nil {
				return fmt.Errorf("invalid --actor: %w", err)
			}
			params := services.DecideParams{
				ProjectID:    pid,
				ArtifactType: artifactType,
				ArtifactID:   aid,
				ActorID:      actor,
				Decision:     decision,
			}
			if reason != "" {
				params.Reason = &reason
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
			result, err := svc.Decide(ctx, params)
			if err != nil {
				return err
			}
			svc.Flush()
			return writeJSON(decideOutput{
				Command:    "decide",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     result,
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&projectID, "project", "", "Project UUID (required)")
	cmd.Flags().StringVar(&artifactType, "artifact-type", "", "Artifact type (required)")
	cmd.Flags().StringVar(&artifactID, "artifact", "", "Artifact UUID (required)")
	cmd.Flags().StringVar(&actorID, "actor", "", "Acting user UUID (required)")
	cmd.Flags().StringVar(&decision, "decision", "", "approved or rejected (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "Optional reason")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("artifact-type")
	_ = cmd.MarkFlagRequired("artifact")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}
