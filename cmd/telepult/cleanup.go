package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/mailbox"
	"github.com/telepult-io/telepult/internal/store"
)

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old terminal command records from the mailbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			st, err := store.OpenBadger(cfg.DatabaseDir)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // one-shot process

			removed, err := mailbox.New(st).Cleanup(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d command records\n", removed)
			return nil
		},
	}
	config.SetupFlags(cmd.Flags())
	return cmd
}
