package openid

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extension adds fields to an outbound authentication response before it
// is signed. Apply writes its fields to the message and returns the names
// (without the "openid." prefix) that must be covered by the signature.
type Extension interface {
	Apply(m *Message) []string
}

// Engine implements the OpenID 2.0 message operations the session state
// machine delegates to: association negotiation, assertion signing and
// check_authentication verification. An Engine is shared by all sessions
// and is safe for concurrent use as long as its stores are.
type Engine struct {
	endpoint string
	shared   AssociationStore
	private  AssociationStore
	assocTTL time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAssociationTTL overrides the default association lifetime.
func WithAssociationTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.assocTTL = ttl }
}

// NewEngine creates an engine advertising the given OP endpoint URL.
// Shared associations are handed to relying parties; private associations
// back dumb-mode assertions and are only ever used by this provider.
func NewEngine(endpoint string, shared, private AssociationStore, opts ...EngineOption) *Engine {
	e := &Engine{
		endpoint: endpoint,
		shared:   shared,
		private:  private,
		assocTTL: 14 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Endpoint returns the OP endpoint URL embedded in assertions.
func (e *Engine) Endpoint() string {
	return e.endpoint
}

// AssociationResponse processes an associate request (OpenID 2.0 Section 8):
// negotiates an association type and session type, stores a new shared
// association, and returns the direct response carrying the MAC key either
// in the clear or encrypted under a Diffie-Hellman shared secret.
func (e *Engine) AssociationResponse(ctx context.Context, p Params) (*Message, error) {
	assocType := p.Field("assoc_type")
	sessionType := p.Field("session_type")

	switch assocType {
	case AssocHMACSHA1, AssocHMACSHA256:
	default:
		return nil, &ProtocolError{Reason: "unsupported assoc_type " + assocType}
	}

	assoc, err := NewAssociation(assocType, e.assocTTL, false)
	if err != nil {
		return nil, err
	}

	resp := NewMessage()
	resp.Set("assoc_handle", assoc.Handle)
	resp.Set("session_type", sessionType)
	resp.Set("assoc_type", assocType)
	resp.Set("expires_in", fmt.Sprintf("%d", assoc.ExpiresIn()))

	switch sessionType {
	case SessionNoEncryption:
		resp.Set("mac_key", base64.StdEncoding.EncodeToString(assoc.MACKey))

	case SessionDHSHA1, SessionDHSHA256:
		consumerPub, modulus, gen, err := parseDHParams(p)
		if err != nil {
			return nil, err
		}
		dh, err := newDHExchange(modulus, gen)
		if err != nil {
			return nil, err
		}
		encKey, err := encryptMACKey(assoc.MACKey, dh.sharedSecret(consumerPub), sessionType)
		if err != nil {
			return nil, err
		}
		resp.Set("dh_server_public", base64.StdEncoding.EncodeToString(btwoc(dh.pub)))
		resp.Set("enc_mac_key", base64.StdEncoding.EncodeToString(encKey))

	default:
		return nil, &ProtocolError{Reason: "unsupported session_type " + sessionType}
	}

	if err := e.shared.Save(ctx, assoc); err != nil {
		return nil, fmt.Errorf("store association: %w", err)
	}
	return resp, nil
}

// AuthResponse builds a positive signed assertion (OpenID 2.0 Section 10.1)
// binding claimedID and localID, enriched by any extensions before signing.
// The request's association handle is used when it names a live shared
// association; otherwise the response is signed with a fresh private
// association and the stale handle is invalidated.
func (e *Engine) AuthResponse(ctx context.Context, p Params, claimedID, localID string, exts ...Extension) (*Message, error) {
	returnTo := p.Field("return_to")
	if returnTo == "" {
		return nil, &ProtocolError{Reason: "missing openid.return_to"}
	}

	resp := NewMessage()
	resp.Set("mode", ModeIDRes)
	resp.Set("op_endpoint", e.endpoint)
	resp.Set("claimed_id", claimedID)
	resp.Set("identity", localID)
	resp.Set("return_to", returnTo)
	resp.Set("response_nonce", responseNonce())

	signed := []string{"op_endpoint", "claimed_id", "identity", "return_to", "response_nonce", "assoc_handle"}

	assoc, err := e.resolveAssociation(ctx, p.Field("assoc_handle"))
	if err != nil {
		return nil, err
	}
	if assoc.Private && p.Field("assoc_handle") != "" {
		resp.Set("invalidate_handle", p.Field("assoc_handle"))
	}
	resp.Set("assoc_handle", assoc.Handle)

	for _, ext := range exts {
		signed = append(signed, ext.Apply(resp)...)
	}

	resp.Set("signed", strings.Join(signed, ","))
	resp.Set("sig", base64.StdEncoding.EncodeToString(assoc.Sign(resp.signatureBase(signed))))
	resp.SetDestination(returnTo)
	return resp, nil
}

// NegativeResponse builds the unsigned negative assertion for a
// checkid request that cannot complete (OpenID 2.0 Section 10.2):
// "cancel" for setup requests, "setup_needed" for immediate ones.
func (e *Engine) NegativeResponse(p Params, immediate bool) (*Message, error) {
	returnTo := p.Field("return_to")
	if returnTo == "" {
		return nil, &ProtocolError{Reason: "missing openid.return_to"}
	}
	resp := NewMessage()
	if immediate {
		resp.Set("mode", ModeSetupNeeded)
	} else {
		resp.Set("mode", ModeCancel)
	}
	resp.SetDestination(returnTo)
	return resp, nil
}

// Verify processes a check_authentication request (OpenID 2.0 Section 11.4.2):
// recomputes the signature of the relayed assertion under the named private
// association and reports is_valid. The association is consumed, so a
// captured assertion cannot be re-verified.
func (e *Engine) Verify(ctx context.Context, p Params) (*Message, error) {
	resp := NewMessage()

	valid := false
	handle := p.Field("assoc_handle")
	if handle != "" {
		if assoc, err := e.private.Load(ctx, handle); err == nil {
			signed := splitSignedList(p.Field("signed"))
			sig, decErr := base64.StdEncoding.DecodeString(p.Field("sig"))
			if len(signed) > 0 && decErr == nil {
				valid = assoc.VerifySig(signatureBaseFromParams(p, signed), sig)
			}
			// One verification per assertion; drop the handle either way.
			_ = e.private.Remove(ctx, handle)
		}
	}
	resp.Set("is_valid", fmt.Sprintf("%t", valid))

	// Confirm invalidation of a handle the RP was told to discard
	// (Section 11.4.2.1): echo it back iff it is not a live shared one.
	if stale := p.Field("invalidate_handle"); stale != "" {
		if _, err := e.shared.Load(ctx, stale); err != nil {
			resp.Set("invalidate_handle", stale)
		}
	}
	return resp, nil
}

// resolveAssociation returns the shared association for handle when it is
// live, or mints and stores a fresh private association.
func (e *Engine) resolveAssociation(ctx context.Context, handle string) (*Association, error) {
	if handle != "" {
		if assoc, err := e.shared.Load(ctx, handle); err == nil {
			return assoc, nil
		}
	}
	assoc, err := NewAssociation(AssocHMACSHA256, e.assocTTL, true)
	if err != nil {
		return nil, err
	}
	if err := e.private.Save(ctx, assoc); err != nil {
		return nil, fmt.Errorf("store private association: %w", err)
	}
	return assoc, nil
}

// parseDHParams reads the consumer's Diffie-Hellman values; modulus and
// generator default per Appendix B when absent.
func parseDHParams(p Params) (consumerPub, modulus, gen *big.Int, err error) {
	raw := p.Field("dh_consumer_public")
	if raw == "" {
		return nil, nil, nil, &ProtocolError{Reason: "missing openid.dh_consumer_public"}
	}
	pubBytes, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, nil, nil, &ProtocolError{Reason: "bad openid.dh_consumer_public: " + err.Error()}
	}
	consumerPub = intFromBtwoc(pubBytes)

	if raw := p.Field("dh_modulus"); raw != "" {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, nil, nil, &ProtocolError{Reason: "bad openid.dh_modulus: " + err.Error()}
		}
		modulus = intFromBtwoc(b)
	}
	if raw := p.Field("dh_gen"); raw != "" {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, nil, nil, &ProtocolError{Reason: "bad openid.dh_gen: " + err.Error()}
		}
		gen = intFromBtwoc(b)
	}
	return consumerPub, modulus, gen, nil
}

// responseNonce builds the unique nonce of a positive assertion: UTC
// timestamp plus unique suffix (OpenID 2.0 Section 10.1).
func responseNonce() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z") + uuid.NewString()[:8]
}
