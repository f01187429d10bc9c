package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"allsky/internal/sqlstore"
)

// EnqueueUpload records a pending transfer of localPath to remotePath.
func (s *Store) EnqueueUpload(ctx context.Context, localPath, remotePath string) (*Upload, error) {
	if strings.TrimSpace(localPath) == "" || strings.TrimSpace(remotePath) == "" {
		return nil, errors.New("upload requires local and remote paths")
	}
	up := Upload{LocalPath: localPath, RemotePath: remotePath, Status: StatusPending, CreatedAt: time.Now()}
	res, err := sqlstore.Exec(ctx, s.db,
		`INSERT INTO uploads (local_path, remote_path, status, created_at) VALUES (?, ?, ?, ?)`,
		up.LocalPath, up.RemotePath, up.Status, sqlstore.FormatTime(up.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}
	if up.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &up, nil
}

// PendingUploads lists uploads not yet taken by a transfer worker.
func (s *Store) PendingUploads(ctx context.Context) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, local_path, remote_path, status, created_at FROM uploads WHERE status = ? ORDER BY id`,
		StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var (
			up         Upload
			status     string
			createdRaw string
		)
		if err := rows.Scan(&up.ID, &up.LocalPath, &up.RemotePath, &status, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		up.Status = Status(status)
		if created, err := sqlstore.ParseTime(createdRaw); err == nil {
			up.CreatedAt = created.Local()
		}
		out = append(out, up)
	}
	return out, rows.Err()
}
