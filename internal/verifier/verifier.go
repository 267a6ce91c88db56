// Package verifier confirms end-user identity against an upstream source.
// The upstream differs per deployment: an in-process user table, or an
// external single-sign-on site probed with a forwarded session cookie.
// Which one runs is a configuration choice, not a code branch inside the
// session state machine.
package verifier

import (
	"context"
	"errors"
)

// ErrCredentialRejected is returned when the upstream refuses the
// credential. Callers must leave session state untouched and let the
// user retry.
var ErrCredentialRejected = errors.New("credential rejected")

// Credential is what the user presented at the confirmation step.
// Username/Password serve the static verifier; SessionToken serves the
// remote SSO probe.
type Credential struct {
	Username     string
	Password     string
	SessionToken string
}

// IdentityVerifier confirms a credential and returns the canonical user
// identifier. Implementations exercise external systems and must honor
// ctx cancellation; any upstream failure surfaces as
// ErrCredentialRejected (possibly wrapped), never a partial result.
type IdentityVerifier interface {
	Verify(ctx context.Context, cred Credential) (string, error)
}
