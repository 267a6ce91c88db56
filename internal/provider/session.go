package provider

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ParleSec/openid-provider/internal/ax"
	"github.com/ParleSec/openid-provider/internal/openid"
	"github.com/ParleSec/openid-provider/internal/verifier"
	"github.com/ParleSec/openid-provider/pkg/models"
)

// Session drives one user's OpenID interaction across requests: it holds
// the in-flight request parameters, the authentication state confirmed by
// the identity verifier, and the set of realms the user has consented to.
// All methods serialize on the session's own mutex; concurrent requests
// for the same browser session never interleave mid-update.
type Session struct {
	mu       sync.Mutex
	token    string
	provider *Provider

	currentRequestParams openid.Params
	mode                 string
	realm                string
	returnTo             string

	authenticated    bool
	verifiedUserID   string
	approvedRealms   map[string]struct{}
	assertedIdentity string

	createdAt time.Time
	expiresAt time.Time
}

func newSession(p *Provider, token string) *Session {
	now := time.Now()
	return &Session{
		token:          token,
		provider:       p,
		approvedRealms: make(map[string]struct{}),
		createdAt:      now,
		expiresAt:      now.Add(p.anonymousTTL),
	}
}

func sessionFromRecord(p *Provider, rec *models.SessionRecord) *Session {
	s := &Session{
		token:          rec.Token,
		provider:       p,
		authenticated:  rec.Authenticated,
		verifiedUserID: rec.UserID,
		approvedRealms: make(map[string]struct{}, len(rec.ApprovedRealms)),
		createdAt:      rec.CreatedAt,
		expiresAt:      rec.ExpiresAt,
	}
	for _, realm := range rec.ApprovedRealms {
		s.approvedRealms[realm] = struct{}{}
	}
	return s
}

// Token returns the opaque token this session is registered under.
func (s *Session) Token() string {
	return s.token
}

// Authenticated reports whether the identity verifier has confirmed this
// user in this session.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Realm returns the relying-party realm of the current request.
func (s *Session) Realm() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realm
}

// VerifiedUserID returns the canonical identifier confirmed by the
// verifier, or "" when the session is anonymous.
func (s *Session) VerifiedUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifiedUserID
}

func (s *Session) expired() bool {
	return time.Now().After(s.expiresAt)
}

// HandleEntryPoint processes one inbound OpenID request: parses the
// parameter set, derives the target realm and dispatches by mode.
func (s *Session) HandleEntryPoint(ctx context.Context, p openid.Params) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRequestParams = p
	s.mode = p.Field("mode")
	s.returnTo = p.Field("return_to")
	s.realm = deriveRealm(p.Field("realm"), s.returnTo)

	return s.handleRequest(ctx)
}

// deriveRealm prefers the explicit openid.realm. Absent that, the host of
// return_to stands in; a return_to that does not parse as a URL is used
// verbatim rather than failing the request.
func deriveRealm(realm, returnTo string) string {
	if realm != "" {
		return realm
	}
	if returnTo == "" {
		return ""
	}
	u, err := url.Parse(returnTo)
	if err != nil || u.Host == "" {
		return returnTo
	}
	return u.Host
}

// handleRequest dispatches the current request by mode. Caller holds s.mu.
func (s *Session) handleRequest(ctx context.Context) (*Response, error) {
	switch s.mode {
	case openid.ModeAssociate:
		msg, err := s.provider.engine.AssociationResponse(ctx, s.currentRequestParams)
		if err != nil {
			return nil, err
		}
		s.provider.events.Emit("association_negotiated", map[string]any{
			"assoc_handle": msg.Get("assoc_handle"),
			"assoc_type":   msg.Get("assoc_type"),
		})
		return directResponse(msg), nil

	case openid.ModeCheckIDSetup:
		return s.handleCheckID(ctx, false)

	case openid.ModeCheckIDImmed:
		return s.handleCheckID(ctx, true)

	case openid.ModeCheckAuth:
		// Pure pass-through; no session state is read or written.
		msg, err := s.provider.engine.Verify(ctx, s.currentRequestParams)
		if err != nil {
			return nil, err
		}
		s.provider.events.Emit("assertion_checked", map[string]any{
			"is_valid": msg.Get("is_valid"),
		})
		return directResponse(msg), nil

	default:
		return nil, &UnrecognizedModeError{Mode: s.mode}
	}
}

// handleCheckID enforces the confirmation gate: an assertion is produced
// only when the user is authenticated and the realm has been approved in
// this session. Caller holds s.mu.
func (s *Session) handleCheckID(ctx context.Context, immediate bool) (*Response, error) {
	s.provider.events.Emit("checkid_received", map[string]any{
		"realm":     s.realm,
		"immediate": immediate,
	})

	_, approved := s.approvedRealms[s.realm]
	if !s.authenticated || !approved {
		if immediate {
			msg, err := s.provider.engine.NegativeResponse(s.currentRequestParams, true)
			if err != nil {
				return nil, err
			}
			return redirectResponse(msg)
		}
		s.provider.events.Emit("confirmation_required", map[string]any{
			"realm":      s.realm,
			"need_login": !s.authenticated,
		})
		return confirmResponse(s.realm, !s.authenticated), nil
	}

	return s.positiveAssertion(ctx)
}

// positiveAssertion builds the signed id_res response for the current
// request. The gate conditions hold when this is called. Caller holds s.mu.
func (s *Session) positiveAssertion(ctx context.Context) (*Response, error) {
	s.assertedIdentity = s.provider.IdentityURL(s.verifiedUserID)

	var exts []openid.Extension
	if req, ok := ax.ParseFetchRequest(s.currentRequestParams); ok {
		if ext := s.provider.attributes.Respond(req, s.verifiedUserID); ext != nil {
			exts = append(exts, ext)
		}
	}

	msg, err := s.provider.engine.AuthResponse(ctx, s.currentRequestParams, s.assertedIdentity, s.assertedIdentity, exts...)
	if err != nil {
		return nil, err
	}
	s.provider.events.Emit("assertion_signed", map[string]any{
		"identity": s.assertedIdentity,
		"realm":    s.realm,
	})
	return redirectResponse(msg)
}

// Authenticate completes the out-of-band login step: the verifier confirms
// the credential, the current realm is approved (presenting the form named
// the realm, so submitting it is the consent act) and the pending checkid
// request is re-dispatched.
func (s *Session) Authenticate(ctx context.Context, cred verifier.Credential) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authenticated {
		userID, err := s.provider.verifier.Verify(ctx, cred)
		if err != nil {
			return nil, err
		}
		s.authenticated = true
		s.verifiedUserID = userID
		s.expiresAt = time.Now().Add(s.provider.authenticatedTTL)
	}

	if s.realm != "" {
		s.approvedRealms[s.realm] = struct{}{}
	}
	s.assertedIdentity = s.provider.IdentityURL(s.verifiedUserID)

	if err := s.persistLocked(ctx); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return s.handleRequest(ctx)
}

// ApproveRealm records consent for realm. Idempotent.
func (s *Session) ApproveRealm(ctx context.Context, realm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvedRealms[realm] = struct{}{}
	return s.persistLocked(ctx)
}

// IsApproved reports whether the user has consented to realm in this
// session.
func (s *Session) IsApproved(realm string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.approvedRealms[realm]
	return ok
}

// Logout discards all per-session state atomically. The next request on
// the same browser session starts anonymous.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.authenticated = false
	s.verifiedUserID = ""
	s.assertedIdentity = ""
	s.approvedRealms = make(map[string]struct{})
	s.mu.Unlock()

	s.provider.events.Emit("logout", map[string]any{"token": s.token})
	return s.provider.Destroy(ctx, s.token)
}

// persistLocked snapshots the session into the durable store. Caller
// holds s.mu.
func (s *Session) persistLocked(ctx context.Context) error {
	rec := &models.SessionRecord{
		Token:         s.token,
		Authenticated: s.authenticated,
		UserID:        s.verifiedUserID,
		CreatedAt:     s.createdAt,
		ExpiresAt:     s.expiresAt,
	}
	for realm := range s.approvedRealms {
		rec.ApprovedRealms = append(rec.ApprovedRealms, realm)
	}
	return s.provider.store.Save(ctx, rec)
}
