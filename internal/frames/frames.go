// Package frames selects the captured stills that feed a derived artifact.
package frames

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"allsky/internal/logging"
)

// FrameRef references one captured still on disk.
type FrameRef struct {
	ID       int64
	Path     string
	Captured time.Time
	DayDate  string
	Night    bool
	Size     int64
}

// Source lists catalogued frames for a day-date and partition.
type Source interface {
	FramesByDayDate(ctx context.Context, dayDate string, night bool) ([]FrameRef, error)
}

// Selector filters catalog results down to frames that still exist.
type Selector struct {
	source Source
	logger *slog.Logger
}

// NewSelector wraps a frame source.
func NewSelector(source Source, logger *slog.Logger) *Selector {
	return &Selector{
		source: source,
		logger: logging.NewComponentLogger(logger, "frames"),
	}
}

// Select returns existing, non-empty frames for (dayDate, night) ordered by
// capture time. Missing files are logged; empty files are skipped quietly.
func (s *Selector) Select(ctx context.Context, dayDate string, night bool) ([]FrameRef, error) {
	refs, err := s.source.FramesByDayDate(ctx, dayDate, night)
	if err != nil {
		return nil, fmt.Errorf("query frames for %s: %w", dayDate, err)
	}

	selected := make([]FrameRef, 0, len(refs))
	for _, ref := range refs {
		info, err := os.Stat(ref.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logging.ErrorWithContext(s.logger, "catalogued frame missing on disk", "frame_missing",
					logging.String("path", ref.Path),
					logging.String(logging.FieldDayDate, dayDate),
					logging.String(logging.FieldErrorHint, "re-import frames or check retention settings"),
				)
			} else {
				s.logger.Error("stat frame failed", logging.String("path", ref.Path), logging.Error(err))
			}
			continue
		}
		if !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		ref.Size = info.Size()
		selected = append(selected, ref)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Captured.Before(selected[j].Captured)
	})
	return selected, nil
}

// Paths returns the file paths of refs in order.
func Paths(refs []FrameRef) []string {
	paths := make([]string, len(refs))
	for i, ref := range refs {
		paths[i] = ref.Path
	}
	return paths
}
