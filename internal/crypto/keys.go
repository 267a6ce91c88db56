// Package crypto manages the provider's signing key and the JWT wrapper
// around session cookies. OpenID message signing itself is HMAC-based and
// lives with the protocol engine; this key only protects the browser
// session cookie against tampering.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"
)

// KeySet holds the process signing key. Keys are generated at startup and
// are deliberately not persisted: a restart invalidates outstanding
// cookies, which degrades to a fresh anonymous session.
type KeySet struct {
	rsaKey    *rsa.PrivateKey
	rsaKeyID  string
	createdAt time.Time
	mu        sync.RWMutex
}

// NewKeySet generates a new RSA signing key.
func NewKeySet() (*KeySet, error) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	return &KeySet{
		rsaKey:    rsaKey,
		rsaKeyID:  generateKeyID("rsa"),
		createdAt: time.Now(),
	}, nil
}

// generateKeyID creates a unique key identifier
func generateKeyID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%s-%x", prefix, b)
}

// RSAPrivateKey returns the RSA private key
func (ks *KeySet) RSAPrivateKey() *rsa.PrivateKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.rsaKey
}

// RSAPublicKey returns the RSA public key
func (ks *KeySet) RSAPublicKey() *rsa.PublicKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return &ks.rsaKey.PublicKey
}

// RSAKeyID returns the RSA key ID
func (ks *KeySet) RSAKeyID() string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.rsaKeyID
}

// CreatedAt returns when the key was generated
func (ks *KeySet) CreatedAt() time.Time {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.createdAt
}
