package verifier

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ParleSec/openid-provider/pkg/models"
)

// StaticVerifier validates credentials against an in-process user table
// loaded from configuration. Suitable for small deployments and demos.
type StaticVerifier struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewStaticVerifier creates a verifier over the given users, keyed by ID.
func NewStaticVerifier(users []models.User) *StaticVerifier {
	v := &StaticVerifier{users: make(map[string]*models.User, len(users))}
	for i := range users {
		u := users[i]
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now()
		}
		v.users[u.ID] = &u
	}
	return v
}

// Verify implements IdentityVerifier. The username matches either the
// user ID or the email address.
func (v *StaticVerifier) Verify(ctx context.Context, cred Credential) (string, error) {
	if cred.Username == "" || cred.Password == "" {
		return "", ErrCredentialRejected
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	user, ok := v.users[cred.Username]
	if !ok {
		for _, u := range v.users {
			if strings.EqualFold(u.Email, cred.Username) {
				user = u
				ok = true
				break
			}
		}
	}
	if !ok || user.Password != cred.Password {
		return "", ErrCredentialRejected
	}
	return user.ID, nil
}

// GetUser returns a user by ID, for attribute and discovery lookups.
func (v *StaticVerifier) GetUser(id string) (*models.User, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	u, ok := v.users[id]
	return u, ok
}
