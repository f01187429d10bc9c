package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"allsky/internal/config"
	"allsky/internal/sqlstore"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Camera is a registered capture device.
type Camera struct {
	ID          int64
	Name        string
	UUID        string
	ConnectDate time.Time
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(context.Background(), cfg.CatalogPath())
}

// OpenPath opens the catalog at an explicit location.
func OpenPath(ctx context.Context, path string) (*Store, error) {
	db, err := sqlstore.Open(ctx, path, schemaSQL, schemaVersion)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RegisterCamera returns the camera named name, creating it with a fresh
// UUID on first use. The connect date is refreshed on every call.
func (s *Store) RegisterCamera(ctx context.Context, name string) (*Camera, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("camera name required")
	}
	now := sqlstore.FormatTime(time.Now())
	_, err := sqlstore.Exec(ctx, s.db,
		`INSERT INTO cameras (name, uuid, connect_date) VALUES (?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET connect_date = excluded.connect_date`,
		name, uuid.NewString(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("register camera: %w", err)
	}
	cam, err := s.CameraByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if cam == nil {
		return nil, fmt.Errorf("camera %q missing after insert", name)
	}
	return cam, nil
}

// CameraByName returns nil when no camera has that name.
func (s *Store) CameraByName(ctx context.Context, name string) (*Camera, error) {
	var (
		cam     Camera
		connect string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, uuid, connect_date FROM cameras WHERE name = ?`, name,
	).Scan(&cam.ID, &cam.Name, &cam.UUID, &connect)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get camera: %w", err)
	}
	if ts, err := sqlstore.ParseTime(connect); err == nil {
		cam.ConnectDate = ts
	}
	return &cam, nil
}
