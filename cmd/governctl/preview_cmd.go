package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quorumworks/govern-sdk/modules/governance/services"
)

type previewOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func newPreviewCmd() *cobra.Command {
	var (
		tenantID     string
		projectID    string
		artifactType string
		artifactID   string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show which approval steps apply to an artifact type (read-only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			pid, err := uuid.Parse(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			params := services.PreviewParams{
				ProjectID:    pid,
				ArtifactType: artifactType,
			}
			if artifactID != "" {
				aid, err := uuid.Parse(artifactID)
				if err != nil {
					return fmt.Errorf("invalid --artifact: %w", err)
				}
				params.ArtifactID = &aid
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
			preview, err := svc.PreviewChain(ctx, params)
			if err != nil {
				return err
			}
			return writeJSON(previewOutput{
				Command:    "preview",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     preview,
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&projectID, "project", "", "Project UUID (required)")
	cmd.Flags().StringVar(&artifactType, "artifact-type", "", "Artifact type, e.g. change_request (required)")
	cmd.Flags().StringVar(&artifactID, "artifact", "", "Artifact UUID (optional, shows live progress)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("artifact-type")
	return cmd
}
