package app

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/panellink/cmd/panellink-agent/app/options"
	"github.com/autopeer-io/panellink/internal/panelagent/channel"
	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/session"
)

func newCheckCommand(opts *options.AgentOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the panel profile without connecting to the simulator",
		Long: `Loads the panel profile, validates it against the known vehicles and prints
the readiness findings that do not need a live simulator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			scfg, err := cfg.SessionConfig()
			if err != nil {
				return err
			}
			ctrl, err := session.New(channel.NewMemory(), scfg)
			if err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 80
			table.Wrap = true
			table.AddRow("SEVERITY", "MESSAGE", "REMEDIATION")

			errorCount, shown := 0, 0
			for item := range ctrl.ReadyCheck() {
				table.AddRow(item.Severity.String(), item.Message, item.Remediation)
				if item.Severity == core.SeverityError {
					errorCount++
				}
				shown++
				if limit > 0 && shown >= limit {
					break
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)

			if errorCount > 0 {
				return fmt.Errorf("readiness check found %d error(s)", errorCount)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many findings (0 shows all).")
	return cmd
}
