// Package provider implements the OpenID 2.0 identity provider core: the
// per-session protocol state machine, the realm-approval gate and the
// process-wide session registry. Message cryptography is delegated to the
// openid engine and credential checks to a pluggable identity verifier.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ParleSec/openid-provider/internal/ax"
	"github.com/ParleSec/openid-provider/internal/openid"
	"github.com/ParleSec/openid-provider/internal/sessionstore"
	"github.com/ParleSec/openid-provider/internal/verifier"
)

// EventSink receives protocol events for observability. Implementations
// must be safe for concurrent use.
type EventSink interface {
	Emit(event string, fields map[string]any)
}

type noopSink struct{}

func (noopSink) Emit(string, map[string]any) {}

// Provider is the process-wide OpenID provider: one per deployment. It
// owns the protocol engine exclusively and maps opaque session tokens to
// live Session state machines, falling back to the durable store when an
// instance restart or another instance created the session.
type Provider struct {
	baseURL    string
	engine     *openid.Engine
	verifier   verifier.IdentityVerifier
	attributes *ax.Responder
	store      sessionstore.Store
	events     EventSink

	anonymousTTL     time.Duration
	authenticatedTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Provider.
type Option func(*Provider)

// WithEventSink routes protocol events to sink.
func WithEventSink(sink EventSink) Option {
	return func(p *Provider) { p.events = sink }
}

// WithSessionTTLs overrides the anonymous and post-login session
// lifetimes.
func WithSessionTTLs(anonymous, authenticated time.Duration) Option {
	return func(p *Provider) {
		p.anonymousTTL = anonymous
		p.authenticatedTTL = authenticated
	}
}

// New creates a Provider asserting identities under baseURL. The URL must
// be absolute; a trailing slash is added when missing so per-user identity
// URLs concatenate cleanly.
func New(baseURL string, engine *openid.Engine, idv verifier.IdentityVerifier, attributes *ax.Responder, store sessionstore.Store, opts ...Option) (*Provider, error) {
	u, err := url.Parse(baseURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("base URL must be absolute: %q", baseURL)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	p := &Provider{
		baseURL:          baseURL,
		engine:           engine,
		verifier:         idv,
		attributes:       attributes,
		store:            store,
		events:           noopSink{},
		anonymousTTL:     time.Hour,
		authenticatedTTL: 30 * 24 * time.Hour,
		sessions:         make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// BaseURL returns the provider's endpoint base URL, with trailing slash.
func (p *Provider) BaseURL() string {
	return p.baseURL
}

// IdentityURL derives the claimed identifier asserted for userID. The
// tilde form keeps the user's identity page and XRDS document addressable
// under the provider's own host.
func (p *Provider) IdentityURL(userID string) string {
	return p.baseURL + "~" + userID
}

// NewToken mints an opaque session token.
func (p *Provider) NewToken() string {
	return uuid.NewString()
}

// Resolve returns the live Session for token, rehydrating it from the
// durable store when this instance has not seen it, or creating a fresh
// anonymous session when the store has no record. An expired or missing
// record is indistinguishable from a new session.
func (p *Provider) Resolve(ctx context.Context, token string) (*Session, error) {
	p.mu.RLock()
	s, ok := p.sessions[token]
	p.mu.RUnlock()
	if ok && !s.expired() {
		return s, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[token]; ok && !s.expired() {
		return s, nil
	}

	rec, err := p.store.Get(ctx, token)
	switch {
	case err == nil:
		s = sessionFromRecord(p, rec)
	case errors.Is(err, sessionstore.ErrNotFound):
		s = newSession(p, token)
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}
	p.sessions[token] = s
	return s, nil
}

// Destroy drops the session for token from the registry and the durable
// store.
func (p *Provider) Destroy(ctx context.Context, token string) error {
	p.mu.Lock()
	delete(p.sessions, token)
	p.mu.Unlock()
	return p.store.Delete(ctx, token)
}
