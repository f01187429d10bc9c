package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"allsky/internal/daydate"
	"allsky/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		dateFlag      string
		partitionFlag string
		folderFlag    string
		noVideo       bool
		noKeogram     bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Request a timelapse and keogram build",
		RunE: func(cmd *cobra.Command, args []string) error {
			dayDate := strings.TrimSpace(dateFlag)
			if dayDate == "" {
				return errors.New("--date is required")
			}
			partition, err := daydate.ParsePartition(partitionFlag)
			if err != nil {
				return err
			}
			if noVideo && noKeogram {
				return errors.New("nothing to build: both --no-video and --no-keogram set")
			}
			req := queue.Request{
				DayDate:     dayDate,
				Partition:   partition,
				WantVideo:   !noVideo,
				WantKeogram: !noKeogram,
				ImageFolder: strings.TrimSpace(folderFlag),
			}
			return ctx.withQueue(func(store *queue.Store) error {
				queued, err := store.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued request %d for %s %s\n", queued.ID, queued.DayDate, partitionLabel(queued.Partition))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Day-date to build (YYYYMMDD)")
	cmd.Flags().StringVar(&partitionFlag, "partition", string(daydate.Night), "Partition to build (day or night)")
	cmd.Flags().StringVar(&folderFlag, "image-folder", "", "Capture folder (defaults to <image_dir>/<date>)")
	cmd.Flags().BoolVar(&noVideo, "no-video", false, "Skip the timelapse video")
	cmd.Flags().BoolVar(&noKeogram, "no-keogram", false, "Skip the keogram")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the worker to exit after pending requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(store *queue.Store) error {
				req, err := store.EnqueueStop(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued stop request %d\n", req.ID)
				return nil
			})
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect build requests and uploads",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List build requests and pending uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFlags))
			for _, s := range statusFlags {
				statuses = append(statuses, queue.Status(strings.ToLower(strings.TrimSpace(s))))
			}
			return ctx.withQueue(func(store *queue.Store) error {
				out := cmd.OutOrStdout()
				requests, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(requests) == 0 {
					fmt.Fprintln(out, "No build requests")
				} else {
					fmt.Fprint(out, renderTable(out,
						[]string{"ID", "Day Date", "Partition", "Video", "Keogram", "Status", "Created"},
						buildRequestRows(requests, time.Now()),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}

				uploads, err := store.PendingUploads(cmd.Context())
				if err != nil {
					return err
				}
				if len(uploads) == 0 {
					fmt.Fprintln(out, "No pending uploads")
					return nil
				}
				rows := make([][]string, 0, len(uploads))
				for _, up := range uploads {
					rows = append(rows, []string{strconv.FormatInt(up.ID, 10), up.LocalPath, up.RemotePath, humanize.Time(up.CreatedAt)})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Local", "Remote", "Queued"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, claimed)")
	return cmd
}

func buildRequestRows(requests []queue.Request, now time.Time) [][]string {
	rows := make([][]string, 0, len(requests))
	for _, req := range requests {
		if req.Stop {
			rows = append(rows, []string{
				strconv.FormatInt(req.ID, 10), "-", "stop", "-", "-", string(req.Status),
				humanize.RelTime(req.CreatedAt, now, "ago", "from now"),
			})
			continue
		}
		rows = append(rows, []string{
			strconv.FormatInt(req.ID, 10),
			req.DayDate,
			partitionLabel(req.Partition),
			yesNo(req.WantVideo),
			yesNo(req.WantKeogram),
			string(req.Status),
			humanize.RelTime(req.CreatedAt, now, "ago", "from now"),
		})
	}
	return rows
}
