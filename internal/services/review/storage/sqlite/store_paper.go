package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// PaperStore methods

// GetPaper retrieves a paper row by id.
func (s *Store) GetPaper(ctx context.Context, id string) (storage.Paper, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Paper{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.Paper{}, fmt.Errorf("paper id is required")
	}
	return getPaper(ctx, s.sqlDB, id)
}

func getPaper(ctx context.Context, q dbtx, id string) (storage.Paper, error) {
	var p storage.Paper
	var createdAt int64
	err := q.QueryRowContext(ctx,
		"SELECT id, external_uuid, title, creator_id, created_at FROM papers WHERE id = ?",
		id,
	).Scan(&p.ID, &p.ExternalUUID, &p.Title, &p.CreatorID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Paper{}, fmt.Errorf("paper %s: %w", id, storage.ErrNotFound)
		}
		return storage.Paper{}, fmt.Errorf("get paper: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

func insertPaperTx(ctx context.Context, tx *sql.Tx, p storage.Paper) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO papers (id, external_uuid, title, creator_id, created_at) VALUES (?, ?, ?, ?, ?)",
		p.ID,
		p.ExternalUUID,
		p.Title,
		p.CreatorID,
		toMillis(p.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	return nil
}
