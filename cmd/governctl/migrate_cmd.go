package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumworks/govern-sdk/modules/governance"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the governance schema to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := governance.SchemaFS.ReadFile(governance.SchemaPath)
			if err != nil {
				return fmt.Errorf("read embedded schema: %w", err)
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			start := time.Now()
			if _, err := pool.Exec(cmd.Context(), string(schema)); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			return writeJSON(map[string]any{
				"command":     "migrate",
				"duration_ms": time.Since(start).Milliseconds(),
				"result":      "ok",
			})
		},
	}
	return cmd
}
