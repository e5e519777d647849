package core

import "time"

// User is a registered account. Authentication itself (password checks,
// token issuance) lives at the HTTP boundary; everything below the server
// layer only ever sees the resolved user ID.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// MemoryRecord is one persisted memory entry. Position is the record's
// insertion index within the owner's memory log; the per-request memory
// store rebuilds its vector index in exactly this order, so Position ties
// a durable row to a slot in the in-memory index.
//
// Records are append-only: they are never mutated or deleted in-process.
type MemoryRecord struct {
	ID        string
	OwnerID   string
	Content   string
	Position  int
	CreatedAt time.Time
}

// FeedbackRecord captures a user correction that triggered a fine-tuning
// step. Exchanges below the uncertainty threshold are not recorded.
type FeedbackRecord struct {
	ID                string
	OwnerID           string
	UserInput         string
	ModelResponse     string
	CorrectedResponse string
	Loss              float64
	CreatedAt         time.Time
}
