// Package httpapi exposes the OpenID provider over HTTP: the protocol
// entry point, the login and consent form, logout, and the XRDS discovery
// documents relying parties use to find the endpoint.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ParleSec/openid-provider/internal/crypto"
	"github.com/ParleSec/openid-provider/internal/monitor"
	"github.com/ParleSec/openid-provider/internal/openid"
	"github.com/ParleSec/openid-provider/internal/provider"
	"github.com/ParleSec/openid-provider/internal/verifier"
)

// Handlers wires the provider core to HTTP routes.
type Handlers struct {
	provider   *provider.Provider
	signer     *crypto.CookieSigner
	monitor    *monitor.Engine
	cookieName string
	cookieTTL  time.Duration
	ssoCookie  string
}

// NewHandlers creates the HTTP handler set. The monitor may be nil, in
// which case the event stream route is not mounted.
func NewHandlers(p *provider.Provider, signer *crypto.CookieSigner, mon *monitor.Engine, cookieName, ssoCookie string) *Handlers {
	return &Handlers{
		provider:   p,
		signer:     signer,
		monitor:    mon,
		cookieName: cookieName,
		cookieTTL:  30 * 24 * time.Hour,
		ssoCookie:  ssoCookie,
	}
}

// RegisterRoutes registers the provider's HTTP routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/openid/entry", h.handleEntry)
	r.Post("/openid/entry", h.handleEntry)
	r.Get("/openid/login", h.handleLoginPage)
	r.Post("/openid/login", h.handleLoginSubmit)
	r.Post("/openid/logout", h.handleLogout)
	r.Get("/openid/xrds", h.handleProviderXRDS)
	r.Get("/~{user}", h.handleUserIdentity)

	if h.monitor != nil {
		r.Get("/ws/events", h.monitor.HandleWebSocket)
	}
}

// resolveSession finds the caller's session from the signed cookie,
// minting a fresh token (and cookie) when there is none or it fails
// validation.
func (h *Handlers) resolveSession(w http.ResponseWriter, r *http.Request) (*provider.Session, error) {
	token := ""
	if c, err := r.Cookie(h.cookieName); err == nil {
		if t, err := h.signer.Parse(c.Value); err == nil {
			token = t
		}
	}
	if token == "" {
		token = h.provider.NewToken()
		if err := h.setSessionCookie(w, token); err != nil {
			return nil, err
		}
	}
	return h.provider.Resolve(r.Context(), token)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) error {
	value, err := h.signer.Issue(token, h.cookieTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// handleEntry is the OpenID protocol endpoint: every mode arrives here as
// query or form parameters.
func (h *Handlers) handleEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	sess, err := h.resolveSession(w, r)
	if err != nil {
		slog.Error("session resolution failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp, err := sess.HandleEntryPoint(r.Context(), openid.ParamsFromValues(r.Form))
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.renderResponse(w, r, resp)
}

// renderResponse writes one outcome of the provider core.
func (h *Handlers) renderResponse(w http.ResponseWriter, r *http.Request, resp *provider.Response) {
	switch {
	case resp.Direct != nil:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(resp.Direct.KeyValueForm())

	case resp.RedirectURL != "":
		http.Redirect(w, r, resp.RedirectURL, http.StatusFound)

	case resp.Confirm != nil:
		http.Redirect(w, r, "/openid/login", http.StatusFound)

	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// renderError maps core errors onto the wire. Protocol violations get a
// direct error message per the message format; anything else is opaque.
func (h *Handlers) renderError(w http.ResponseWriter, err error) {
	var protoErr *openid.ProtocolError
	if errors.As(err, &protoErr) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		w.Write(openid.ErrorResponse(protoErr.Reason).KeyValueForm())
		return
	}

	var modeErr *provider.UnrecognizedModeError
	if errors.As(err, &modeErr) {
		slog.Warn("unrecognized mode", "mode", modeErr.Mode)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.Error("request failed", "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// handleLoginPage shows the login and consent form for the pending
// checkid request.
func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.resolveSession(w, r)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(generateLoginPage(sess.Realm(), sess.Authenticated())))
}

// handleLoginSubmit completes the confirmation step: verifies the
// credential, records consent for the pending realm and resumes the
// parked checkid request.
func (h *Handlers) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	sess, err := h.resolveSession(w, r)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	cred := verifier.Credential{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}
	if c, err := r.Cookie(h.ssoCookie); err == nil {
		cred.SessionToken = c.Value
	}

	resp, err := sess.Authenticate(r.Context(), cred)
	if err != nil {
		if errors.Is(err, verifier.ErrCredentialRejected) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusUnauthorized)
			page := strings.Replace(generateLoginPage(sess.Realm(), false),
				"<!-- ERROR -->", `<div class="error">Invalid username or password</div>`, 1)
			w.Write([]byte(page))
			return
		}
		h.renderError(w, err)
		return
	}
	h.renderResponse(w, r, resp)
}

// handleLogout destroys the session and clears the cookie.
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.resolveSession(w, r)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := sess.Logout(r.Context()); err != nil {
		slog.Error("logout failed", "error", err)
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
