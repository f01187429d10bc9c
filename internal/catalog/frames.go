package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"allsky/internal/daydate"
	"allsky/internal/frames"
	"allsky/internal/sqlstore"
)

// AddFrame records a captured frame. Its day-date is derived from the capture
// time and night flag. Re-adding a path updates the existing row.
func (s *Store) AddFrame(ctx context.Context, cameraID int64, path string, captured time.Time, night bool, size int64) (*frames.FrameRef, error) {
	dayDate := daydate.Format(daydate.For(captured, night))
	var id int64
	err := sqlstore.RetryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO frames (camera_id, filename, created_at, day_date, night, size)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(filename) DO UPDATE SET
             camera_id = excluded.camera_id,
             created_at = excluded.created_at,
             day_date = excluded.day_date,
             night = excluded.night,
             size = excluded.size
         RETURNING id`,
			cameraID, path, sqlstore.FormatTime(captured), dayDate, sqlstore.BoolToInt(night), size,
		).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("insert frame: %w", err)
	}
	return &frames.FrameRef{
		ID:       id,
		Path:     path,
		Captured: captured,
		DayDate:  dayDate,
		Night:    night,
		Size:     size,
	}, nil
}

// FramesByDayDate lists catalogued frames for a day-date and partition in
// capture order. Files are not checked; see frames.Selector.
func (s *Store) FramesByDayDate(ctx context.Context, dayDate string, night bool) ([]frames.FrameRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, created_at, day_date, night, size FROM frames
         WHERE day_date = ? AND night = ?
         ORDER BY created_at, id`,
		dayDate, sqlstore.BoolToInt(night),
	)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []frames.FrameRef
	for rows.Next() {
		ref, err := scanFrame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// CountFrames returns the number of catalogued frames.
func (s *Store) CountFrames(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

func scanFrame(scanner interface{ Scan(dest ...any) error }) (frames.FrameRef, error) {
	var (
		ref     frames.FrameRef
		created string
		night   int
		size    sql.NullInt64
	)
	if err := scanner.Scan(&ref.ID, &ref.Path, &created, &ref.DayDate, &night, &size); err != nil {
		return frames.FrameRef{}, err
	}
	ref.Night = night != 0
	ref.Size = size.Int64
	if ts, err := sqlstore.ParseTime(created); err == nil {
		ref.Captured = ts.Local()
	}
	return ref, nil
}

var _ frames.Source = (*Store)(nil)
