package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/telepult-io/telepult/internal/command"
	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/eventlog"
	"github.com/telepult-io/telepult/internal/guard"
	"github.com/telepult-io/telepult/internal/mailbox"
	"github.com/telepult-io/telepult/internal/producer"
	"github.com/telepult-io/telepult/internal/store"
)

// issue queues a command directly against the local store, bypassing Telegram.
// Meant for scripts and for poking the mailbox while the daemon is stopped;
// the store is single-writer, so it will refuse to open under a running serve.
func newIssueCmd() *cobra.Command {
	var issuer, typ, target string
	var params []string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Queue a command for a remote machine",
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

			paramMap := make(map[string]string, len(params))
			for _, p := range params {
				key, value, found := strings.Cut(p, "=")
				if !found {
					return fmt.Errorf("invalid --param %q, expected key=value", p)
				}
				paramMap[key] = value
			}

			events := eventlog.New(st)
			prod := producer.New(mailbox.New(st), guard.New(config.CooldownWindow), events)
			if err := prod.Rehydrate(cmd.Context()); err != nil {
				return err
			}

			id, err := prod.Issue(cmd.Context(), issuer, command.Type(typ), target, paramMap)
			if err != nil {
				return err
			}
			fmt.Printf("queued command %d\n", id)
			return nil
		},
	}

	config.SetupFlags(cmd.Flags())
	cmd.Flags().StringVar(&issuer, "issuer", "cli", "issuer recorded on the command")
	cmd.Flags().StringVar(&typ, "type", "", "command type, e.g. shutdown or launch_program")
	cmd.Flags().StringVar(&target, "target", "", "destination machine ID")
	cmd.Flags().StringArrayVar(&params, "param", nil, "command parameter as key=value, repeatable")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
