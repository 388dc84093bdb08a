package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reidpipe/internal/preflight"
	"reidpipe/internal/services"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check binaries, directories, and devices before a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)

			rows := make([][]string, 0, len(results)+1)
			for _, result := range results {
				state := "OK"
				if !result.Passed {
					state = "FAIL"
				}
				rows = append(rows, []string{result.Name, state, result.Detail})
			}
			probe := preflight.ProbeDevices()
			rows = append(rows, []string{"Accelerators", "INFO", probe.DeviceDetail()})

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if failures := preflight.Failures(results); len(failures) > 0 {
				return services.Wrap(services.ErrConfiguration, "preflight", "",
					fmt.Sprintf("%d check(s) failed", len(failures)), nil)
			}
			return nil
		},
	}
}
