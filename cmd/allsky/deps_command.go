package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"allsky/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external programs builds rely on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(cmd.Context(), deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ok"
				switch {
				case !s.Available && s.Optional:
					state = "optional"
				case !s.Available:
					state = "missing"
				}
				detail := s.Version
				if detail == "" {
					detail = s.Detail
				}
				rows = append(rows, []string{s.Name, state, s.Command, detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"Dependency", "State", "Command", "Detail"}, rows, nil))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			return nil
		},
	}
}
