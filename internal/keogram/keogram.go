// Package keogram hands a frame set to the keogram renderer.
package keogram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"allsky/internal/config"
	"allsky/internal/logging"
)

// Geometry controls how the keogram strip is sampled and scaled.
type Geometry struct {
	Angle  float64
	HScale int
	VScale int
}

// Generator renders a keogram from ordered frames into output.
type Generator interface {
	Generate(ctx context.Context, frames []string, geometry Geometry, output string) error
}

// GeometryFromConfig extracts the keogram geometry settings.
func GeometryFromConfig(cfg config.Keogram) Geometry {
	return Geometry{Angle: cfg.Angle, HScale: cfg.HScale, VScale: cfg.VScale}
}

// ExecGenerator runs an external keogram command:
//
//	<command> --frames <listfile> --angle <a> --h-scale <h> --v-scale <v> --output <path>
//
// The list file holds one frame path per line.
type ExecGenerator struct {
	command    string
	scratchDir string
	logger     *slog.Logger
}

// NewExecGenerator builds a generator for the configured command.
func NewExecGenerator(command, scratchDir string, logger *slog.Logger) *ExecGenerator {
	return &ExecGenerator{
		command:    strings.TrimSpace(command),
		scratchDir: scratchDir,
		logger:     logging.NewComponentLogger(logger, "keogram"),
	}
}

// Generate writes the frame list and runs the command. A failed run removes
// any partial output.
func (g *ExecGenerator) Generate(ctx context.Context, frames []string, geometry Geometry, output string) error {
	if g.command == "" {
		return errors.New("keogram command not configured")
	}
	if len(frames) == 0 {
		return errors.New("no frames for keogram")
	}

	list, err := os.CreateTemp(g.scratchDir, "keogram-*.txt")
	if err != nil {
		return fmt.Errorf("create frame list: %w", err)
	}
	defer os.Remove(list.Name())
	if _, err := list.WriteString(strings.Join(frames, "\n") + "\n"); err != nil {
		list.Close()
		return fmt.Errorf("write frame list: %w", err)
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("close frame list: %w", err)
	}

	args := []string{
		"--frames", list.Name(),
		"--angle", strconv.FormatFloat(geometry.Angle, 'f', -1, 64),
		"--h-scale", strconv.Itoa(geometry.HScale),
		"--v-scale", strconv.Itoa(geometry.VScale),
		"--output", output,
	}
	g.logger.Info("generating keogram", logging.String("output", output), logging.Int("frames", len(frames)))

	start := time.Now()
	cmd := exec.CommandContext(ctx, g.command, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("keogram command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if info, statErr := os.Stat(output); statErr != nil || info.Size() == 0 {
		_ = os.Remove(output)
		return fmt.Errorf("keogram command produced no output at %s", output)
	}

	g.logger.Info("keogram generated", logging.String("output", output), logging.Duration("elapsed", time.Since(start)))
	return nil
}

var _ Generator = (*ExecGenerator)(nil)
