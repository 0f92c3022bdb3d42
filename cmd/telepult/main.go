package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/telepult-io/telepult/internal/logs"
)

var version = "dev"
var commit = "N/A"
var date = "N/A"

func main() {
	root := &cobra.Command{
		Use:           "telepult",
		Short:         "Telegram bot controlling remote machines through a shared document mailbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newIssueCmd())
	root.AddCommand(newCleanupCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			v := version
			if v != "dev" {
				v = fmt.Sprintf("v%s", v)
			}
			fmt.Printf("%s (commit: %s, build date: %s)\n", v, commit, date)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
