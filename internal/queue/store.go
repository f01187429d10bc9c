package queue

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
	"allsky/internal/daydate"
	"allsky/internal/sqlstore"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

const requestColumns = "id, request_uuid, day_date, day_part, want_video, want_keogram, stop, image_folder, status, created_at, claimed_at"

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(context.Background(), cfg.QueuePath())
}

// OpenPath opens the queue at an explicit location.
func OpenPath(ctx context.Context, path string) (*Store, error) {
	db, err := sqlstore.Open(ctx, path, schemaSQL, schemaVersion)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enqueue validates and stores a build request.
func (s *Store) Enqueue(ctx context.Context, req Request) (*Request, error) {
	req.DayDate = strings.TrimSpace(req.DayDate)
	req.ImageFolder = strings.TrimSpace(req.ImageFolder)
	if !req.Stop {
		if _, err := daydate.Parse(req.DayDate); err != nil {
			return nil, err
		}
		partition, err := daydate.ParsePartition(string(req.Partition))
		if err != nil {
			return nil, err
		}
		req.Partition = partition
		if !req.WantVideo && !req.WantKeogram {
			return nil, errors.New("request must ask for a video or a keogram")
		}
	}
	return s.insert(ctx, req)
}

// EnqueueStop stores the sentinel that ends the worker loop.
func (s *Store) EnqueueStop(ctx context.Context) (*Request, error) {
	return s.insert(ctx, Request{Stop: true})
}

func (s *Store) insert(ctx context.Context, req Request) (*Request, error) {
	req.UUID = uuid.NewString()
	req.Status = StatusPending
	req.CreatedAt = time.Now()
	res, err := sqlstore.Exec(ctx, s.db,
		`INSERT INTO build_requests (request_uuid, day_date, day_part, want_video, want_keogram, stop, image_folder, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.UUID,
		req.DayDate,
		string(req.Partition),
		sqlstore.BoolToInt(req.WantVideo),
		sqlstore.BoolToInt(req.WantKeogram),
		sqlstore.BoolToInt(req.Stop),
		sqlstore.NullableString(req.ImageFolder),
		req.Status,
		sqlstore.FormatTime(req.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	req.ID = id
	return &req, nil
}

// Claim takes the oldest pending request, or returns nil when none wait.
func (s *Store) Claim(ctx context.Context) (*Request, error) {
	var claimed *Request
	err := sqlstore.RetryOnBusy(ctx, func() error {
		req, err := s.claimOnce(ctx)
		claimed = req
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim request: %w", err)
	}
	return claimed, nil
}

func (s *Store) claimOnce(ctx context.Context) (*Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM build_requests WHERE status = ? ORDER BY id LIMIT 1`, StatusPending)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE build_requests SET status = ?, claimed_at = ? WHERE id = ? AND status = ?`,
		StatusClaimed, sqlstore.FormatTime(now), req.ID, StatusPending)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, fmt.Errorf("request %d claimed concurrently", req.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	req.Status = StatusClaimed
	req.ClaimedAt = &now
	return req, nil
}

// Next blocks until a request can be claimed, polling every interval.
func (s *Store) Next(ctx context.Context, interval time.Duration) (*Request, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		req, err := s.Claim(ctx)
		if err != nil {
			return nil, err
		}
		if req != nil {
			return req, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// List returns requests in id order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM build_requests`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query += ` WHERE status IN (` + placeholders + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func scanRequest(scanner interface{ Scan(dest ...any) error }) (*Request, error) {
	var (
		req         Request
		partition   string
		wantVideo   int
		wantKeogram int
		stop        int
		imageFolder sql.NullString
		status      string
		createdRaw  string
		claimedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&req.ID,
		&req.UUID,
		&req.DayDate,
		&partition,
		&wantVideo,
		&wantKeogram,
		&stop,
		&imageFolder,
		&status,
		&createdRaw,
		&claimedRaw,
	); err != nil {
		return nil, err
	}
	req.Partition = daydate.Partition(partition)
	req.WantVideo = wantVideo != 0
	req.WantKeogram = wantKeogram != 0
	req.Stop = stop != 0
	req.ImageFolder = imageFolder.String
	req.Status = Status(status)
	if created, err := sqlstore.ParseTime(createdRaw); err == nil {
		req.CreatedAt = created.Local()
	}
	if claimedRaw.Valid {
		if claimed, err := sqlstore.ParseTime(claimedRaw.String); err == nil {
			local := claimed.Local()
			req.ClaimedAt = &local
		}
	}
	return &req, nil
}
