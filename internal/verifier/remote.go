package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteVerifier confirms identity by probing an external SSO site with
// the session cookie the user's browser already holds there. The probe
// endpoint answers with the logged-in user for a live session and a
// non-200 status otherwise.
type RemoteVerifier struct {
	probeURL   string
	cookieName string
	client     *http.Client
}

// NewRemoteVerifier creates a verifier probing probeURL, forwarding the
// credential's session token as the named cookie.
func NewRemoteVerifier(probeURL, cookieName string, timeout time.Duration) *RemoteVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteVerifier{
		probeURL:   probeURL,
		cookieName: cookieName,
		client:     &http.Client{Timeout: timeout},
	}
}

type probeResponse struct {
	User string `json:"user"`
}

// Verify implements IdentityVerifier. Network failures, timeouts and
// unparseable answers all collapse into ErrCredentialRejected so the
// session state machine never sees a half-verified identity.
func (v *RemoteVerifier) Verify(ctx context.Context, cred Credential) (string, error) {
	if cred.SessionToken == "" {
		return "", ErrCredentialRejected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.probeURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialRejected, err)
	}
	req.AddCookie(&http.Cookie{Name: v.cookieName, Value: cred.SessionToken})

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: probe failed: %v", ErrCredentialRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrCredentialRejected
	}

	var probe probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&probe); err != nil || probe.User == "" {
		return "", ErrCredentialRejected
	}
	return probe.User, nil
}
