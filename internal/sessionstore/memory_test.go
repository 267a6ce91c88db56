package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParleSec/openid-provider/pkg/models"
)

func record(token string, ttl time.Duration) *models.SessionRecord {
	now := time.Now()
	return &models.SessionRecord{
		Token:          token,
		Authenticated:  true,
		UserID:         "alice",
		ApprovedRealms: []string{"rp.example"},
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

func TestMemoryStoreSaveGet(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	rec := record("t1", time.Hour)
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, rec.Token, got.Token)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, rec.ApprovedRealms, got.ApprovedRealms)

	// The store hands out copies; mutating one must not leak into the other.
	got.ApprovedRealms[0] = "evil.example"
	again, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rp.example"}, again.ApprovedRealms)
}

func TestMemoryStoreMissingToken(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiredRecord(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("t2", -time.Minute)))
	_, err := store.Get(ctx, "t2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("t3", time.Hour)))
	require.NoError(t, store.Delete(ctx, "t3"))

	_, err := store.Get(ctx, "t3")
	assert.ErrorIs(t, err, ErrNotFound)
}
