package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"allsky/internal/sqlstore"
)

// Kind distinguishes artifact tables.
type Kind string

const (
	KindVideo   Kind = "video"
	KindKeogram Kind = "keogram"
)

// Kinds lists every artifact kind.
var Kinds = []Kind{KindVideo, KindKeogram}

func (k Kind) table() (string, error) {
	switch k {
	case KindVideo:
		return "videos", nil
	case KindKeogram:
		return "keograms", nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", k)
	}
}

// Artifact is one persisted video or keogram.
type Artifact struct {
	ID        int64
	Kind      Kind
	Path      string
	CreatedAt time.Time
	DayDate   string
	Night     bool
	CameraID  int64
	Uploaded  bool
}

const artifactColumns = "id, filename, created_at, day_date, night, camera_id, uploaded"

// CreateArtifact records a new artifact. A row for the same path must not
// already exist; see DeleteArtifactByPath.
func (s *Store) CreateArtifact(ctx context.Context, a Artifact) (*Artifact, error) {
	table, err := a.Kind.table()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Path) == "" {
		return nil, errors.New("artifact path required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := sqlstore.Exec(ctx, s.db,
		`INSERT INTO `+table+` (filename, created_at, day_date, night, camera_id, uploaded)
         VALUES (?, ?, ?, ?, ?, ?)`,
		a.Path, sqlstore.FormatTime(a.CreatedAt), a.DayDate, sqlstore.BoolToInt(a.Night), a.CameraID, sqlstore.BoolToInt(a.Uploaded),
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", a.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	return &a, nil
}

// DeleteArtifactByPath removes any row for path and reports how many went.
func (s *Store) DeleteArtifactByPath(ctx context.Context, kind Kind, path string) (int64, error) {
	table, err := kind.table()
	if err != nil {
		return 0, err
	}
	res, err := sqlstore.Exec(ctx, s.db, `DELETE FROM `+table+` WHERE filename = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ArtifactByPath returns nil when no row exists for path.
func (s *Store) ArtifactByPath(ctx context.Context, kind Kind, path string) (*Artifact, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM `+table+` WHERE filename = ?`, path)
	a, err := scanArtifact(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return a, nil
}

// MarkUploaded sets the uploaded flag on an artifact.
func (s *Store) MarkUploaded(ctx context.Context, kind Kind, id int64) error {
	table, err := kind.table()
	if err != nil {
		return err
	}
	if _, err := sqlstore.Exec(ctx, s.db, `UPDATE `+table+` SET uploaded = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark %s uploaded: %w", kind, err)
	}
	return nil
}

// ListArtifacts returns artifacts of kind, newest day-date first.
func (s *Store) ListArtifacts(ctx context.Context, kind Kind) ([]Artifact, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+artifactColumns+` FROM `+table+` ORDER BY day_date DESC, night DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountArtifacts returns the number of rows of kind.
func (s *Store) CountArtifacts(ctx context.Context, kind Kind) (int, error) {
	table, err := kind.table()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

func scanArtifact(scanner interface{ Scan(dest ...any) error }, kind Kind) (*Artifact, error) {
	var (
		a        = Artifact{Kind: kind}
		created  string
		night    int
		uploaded int
	)
	if err := scanner.Scan(&a.ID, &a.Path, &created, &a.DayDate, &night, &a.CameraID, &uploaded); err != nil {
		return nil, err
	}
	a.Night = night != 0
	a.Uploaded = uploaded != 0
	if ts, err := sqlstore.ParseTime(created); err == nil {
		a.CreatedAt = ts.Local()
	}
	return &a, nil
}
