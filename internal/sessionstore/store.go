// Package sessionstore persists browser-session records keyed by their
// opaque token. The in-memory backend serves a single provider instance;
// the Redis backend lets several instances share one session space.
// A missing token is indistinguishable from an expired one: callers treat
// both as a brand-new unauthenticated session.
package sessionstore

import (
	"context"
	"errors"

	"github.com/ParleSec/openid-provider/pkg/models"
)

// ErrNotFound is returned when a token has no live record.
var ErrNotFound = errors.New("session not found")

// Store persists session records. Implementations must be safe for
// concurrent use and must evict records past their ExpiresAt.
type Store interface {
	Get(ctx context.Context, token string) (*models.SessionRecord, error)
	Save(ctx context.Context, rec *models.SessionRecord) error
	Delete(ctx context.Context, token string) error
	Close() error
}
