package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"allsky/internal/imageio"
	"allsky/internal/metrics"
	"allsky/internal/stack"
)

func newStackCommand(ctx *commandContext) *cobra.Command {
	var (
		methodFlag   string
		outputFlag   string
		textfileFlag string
		noRegister   bool
	)

	cmd := &cobra.Command{
		Use:   "stack <image>...",
		Short: "Register and combine images into one composite",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFlag == "" {
				return errors.New("--output is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			method := methodFlag
			if method == "" {
				method = cfg.Stacking.Method
			}
			if _, err := stack.ParseMethod(method); err != nil {
				return err
			}

			frames := make([]*stack.Frame, 0, len(args))
			for _, path := range args {
				f, err := imageio.Read(path)
				if err != nil {
					return err
				}
				frames = append(frames, f)
			}

			m := metrics.New(prometheus.NewRegistry())
			start := time.Now()
			out := cmd.OutOrStdout()
			if cfg.Stacking.Register && !noRegister && len(frames) > 1 {
				registrar := stack.NewRegistrar(
					stack.WithROI(cfg.Stacking.ROI, cfg.Stacking.Binning),
					stack.WithDetection(cfg.Stacking.DetectionSigma, cfg.Stacking.MaxControlPoints, cfg.Stacking.MinArea),
					stack.WithLogger(ctx.logger()),
					stack.WithRecorder(m),
				)
				aligned, results := registrar.Register(frames)
				for _, r := range results {
					if !r.OK() {
						fmt.Fprintf(out, "dropped %s: %v\n", r.Source, r.Err)
					}
				}
				frames = aligned
			}

			composite, err := stack.Reduce(method, frames)
			if err != nil {
				return err
			}
			if err := imageio.Write(outputFlag, composite); err != nil {
				return err
			}
			if textfileFlag != "" {
				if err := m.WriteTextfile(textfileFlag); err != nil {
					return fmt.Errorf("write metrics textfile: %w", err)
				}
			}
			fmt.Fprintf(out, "Stacked %d of %d images into %s in %s\n", len(frames), len(args), outputFlag, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&methodFlag, "method", "m", "", "Reducer: mean, maximum or minimum (defaults to stacking.method)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Composite output path (.png, .jpg or .tif)")
	cmd.Flags().StringVar(&textfileFlag, "metrics-textfile", "", "Write registration counters here for the node_exporter textfile collector")
	cmd.Flags().BoolVar(&noRegister, "no-register", false, "Skip star registration")
	return cmd
}
