package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"allsky/internal/catalog"
	"allsky/internal/daydate"
)

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	artifactsCmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect generated videos and keograms",
	}
	artifactsCmd.AddCommand(newArtifactsListCommand(ctx))
	return artifactsCmd
}

func newArtifactsListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := catalog.Kinds
			if k := strings.ToLower(strings.TrimSpace(kindFlag)); k != "" {
				kinds = []catalog.Kind{catalog.Kind(k)}
			}
			return ctx.withCatalog(func(store *catalog.Store) error {
				var rows [][]string
				for _, kind := range kinds {
					artifacts, err := store.ListArtifacts(cmd.Context(), kind)
					if err != nil {
						return err
					}
					for _, a := range artifacts {
						rows = append(rows, artifactRow(a))
					}
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No artifacts")
					return nil
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Kind", "Day Date", "Partition", "Size", "Uploaded", "Path"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "Only list one kind (video or keogram)")
	return cmd
}

func artifactRow(a catalog.Artifact) []string {
	size := "missing"
	if info, err := os.Stat(a.Path); err == nil {
		size = humanize.IBytes(uint64(info.Size()))
	}
	return []string{
		strconv.FormatInt(a.ID, 10),
		string(a.Kind),
		a.DayDate,
		partitionLabel(daydate.PartitionOf(a.Night)),
		size,
		yesNo(a.Uploaded),
		a.Path,
	}
}
