package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dynamem/dynamem/core"
	"github.com/dynamem/dynamem/engine"
)

var _ engine.FeedbackStore = (*Store)(nil)

// SaveFeedback persists a correction record.
func (s *Store) SaveFeedback(ctx context.Context, rec core.FeedbackRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, owner_id, user_input, model_response, corrected_response, loss, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.UserInput, rec.ModelResponse, rec.CorrectedResponse,
		rec.Loss, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns an owner's correction records, newest first.
func (s *Store) ListFeedback(ctx context.Context, ownerID string) ([]core.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, user_input, model_response, corrected_response, loss, created_at
		 FROM feedback WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var recs []core.FeedbackRecord
	for rows.Next() {
		var rec core.FeedbackRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.UserInput, &rec.ModelResponse,
			&rec.CorrectedResponse, &rec.Loss, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return recs, nil
}
