package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dynamem/dynamem/core"
	"github.com/dynamem/dynamem/memory"
)

var _ memory.Recorder = (*Store)(nil)

// AppendMemory persists one memory record.
func (s *Store) AppendMemory(ctx context.Context, rec core.MemoryRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO memories (id, owner_id, content, position, created_at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.OwnerID, rec.Content, rec.Position, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// ListMemories returns all of an owner's memories in insertion order.
func (s *Store) ListMemories(ctx context.Context, ownerID string) ([]core.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, owner_id, content, position, created_at FROM memories WHERE owner_id = ? ORDER BY position",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var recs []core.MemoryRecord
	for rows.Next() {
		var rec core.MemoryRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Content, &rec.Position, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return recs, nil
}
