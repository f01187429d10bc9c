package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"allsky/internal/catalog"
	"allsky/internal/config"
	"allsky/internal/daydate"
	"allsky/internal/frames"
	"allsky/internal/imageio"
)

func newFramesCommand(ctx *commandContext) *cobra.Command {
	framesCmd := &cobra.Command{
		Use:   "frames",
		Short: "Import and inspect catalogued frames",
	}
	framesCmd.AddCommand(newFramesImportCommand(ctx))
	framesCmd.AddCommand(newFramesListCommand(ctx))
	return framesCmd
}

func newFramesImportCommand(ctx *commandContext) *cobra.Command {
	var (
		night      bool
		cameraFlag string
	)

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Record every image under a directory in the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(store *catalog.Store) error {
				cfg, _ := ctx.ensureConfig()
				name := strings.TrimSpace(cameraFlag)
				if name == "" {
					name = cfg.Camera.Name
				}
				camera, err := store.RegisterCamera(cmd.Context(), name)
				if err != nil {
					return err
				}

				var imported, skipped int
				for path, walkErr := range frames.Walk(root, imageio.Extensions) {
					if walkErr != nil {
						return walkErr
					}
					info, err := os.Stat(path)
					if err != nil {
						return fmt.Errorf("stat %s: %w", path, err)
					}
					if info.Size() == 0 {
						skipped++
						continue
					}
					if _, err := store.AddFrame(cmd.Context(), camera.ID, path, info.ModTime(), night, info.Size()); err != nil {
						return err
					}
					imported++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d frames (%d empty skipped) for camera %s\n", imported, skipped, camera.Name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&night, "night", false, "Frames belong to the night partition")
	cmd.Flags().StringVar(&cameraFlag, "camera", "", "Camera name (defaults to camera.name)")
	return cmd
}

func newFramesListCommand(ctx *commandContext) *cobra.Command {
	var (
		dateFlag      string
		partitionFlag string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the frames a build would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(dateFlag) == "" {
				return errors.New("--date is required")
			}
			if _, err := daydate.Parse(dateFlag); err != nil {
				return err
			}
			partition, err := daydate.ParsePartition(partitionFlag)
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(store *catalog.Store) error {
				selector := frames.NewSelector(store, ctx.logger())
				refs, err := selector.Select(cmd.Context(), strings.TrimSpace(dateFlag), partition.IsNight())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(refs) == 0 {
					fmt.Fprintln(out, "No frames")
					return nil
				}
				var total int64
				rows := make([][]string, 0, len(refs))
				for i, ref := range refs {
					total += ref.Size
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						ref.Captured.Format("2006-01-02 15:04:05"),
						humanize.IBytes(uint64(max(ref.Size, 0))),
						ref.Path,
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"#", "Captured", "Size", "Path"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintf(out, "%s frames, %s\n", humanize.Comma(int64(len(refs))), humanize.IBytes(uint64(max(total, 0))))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Day-date (YYYYMMDD)")
	cmd.Flags().StringVar(&partitionFlag, "partition", string(daydate.Night), "Partition (day or night)")
	return cmd
}
