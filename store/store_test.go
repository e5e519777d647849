package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamem/dynamem/core"
	"github.com/dynamem/dynamem/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUserAndLookup(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	created, err := s.CreateUser(ctx, "alice@example.com", "hashed")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "hashed", byEmail.PasswordHash)

	byID, err := s.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.CreateUser(ctx, "alice@example.com", "hashed")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice@example.com", "other")
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	user, err := s.CreateUser(ctx, "alice@example.com", "hashed")
	require.NoError(t, err)

	token, err := s.CreateToken(ctx, user.ID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := s.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved)

	require.NoError(t, s.DeleteToken(ctx, token))
	_, err = s.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrTokenInvalid)
}

func TestExpiredTokenRejected(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	user, err := s.CreateUser(ctx, "alice@example.com", "hashed")
	require.NoError(t, err)

	token, err := s.CreateToken(ctx, user.ID, time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = s.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrTokenInvalid)
}

func TestUnknownTokenRejected(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ResolveToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, store.ErrTokenInvalid)
}

func TestAppendAndListMemories(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	user, err := s.CreateUser(ctx, "alice@example.com", "hashed")
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, content := range []string{"first", "second", "third"} {
		err := s.AppendMemory(ctx, core.MemoryRecord{
			ID:        uuid.New().String(),
			OwnerID:   user.ID,
			Content:   content,
			Position:  i,
			CreatedAt: now,
		})
		require.NoError(t, err)
	}

	recs, err := s.ListMemories(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "first", recs[0].Content)
	assert.Equal(t, "second", recs[1].Content)
	assert.Equal(t, "third", recs[2].Content)

	other, err := s.ListMemories(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveAndListFeedback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	user, err := s.CreateUser(ctx, "alice@example.com", "hashed")
	require.NoError(t, err)

	rec := core.FeedbackRecord{
		ID:                uuid.New().String(),
		OwnerID:           user.ID,
		UserInput:         "Hello",
		ModelResponse:     "wrong",
		CorrectedResponse: "right",
		Loss:              1.42,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, s.SaveFeedback(ctx, rec))

	recs, err := s.ListFeedback(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "right", recs[0].CorrectedResponse)
	assert.InDelta(t, 1.42, recs[0].Loss, 1e-9)
}
