package httpapi

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// OpenID 2.0 discovery service types (Section 7.3.2).
const (
	serviceTypeServer = "http://specs.openid.net/auth/2.0/server"
	serviceTypeSignon = "http://specs.openid.net/auth/2.0/signon"
)

// XRDSDocument is the discovery document served for claimed identifiers.
type XRDSDocument struct {
	XMLName   xml.Name `xml:"xrds:XRDS"`
	XMLNSXrds string   `xml:"xmlns:xrds,attr"`
	XMLNS     string   `xml:"xmlns,attr"`
	XRD       XRD      `xml:"XRD"`
}

type XRD struct {
	Services []XRDSService `xml:"Service"`
}

type XRDSService struct {
	Priority int      `xml:"priority,attr"`
	Types    []string `xml:"Type"`
	URI      string   `xml:"URI"`
	LocalID  string   `xml:"LocalID,omitempty"`
}

func newXRDS(services ...XRDSService) XRDSDocument {
	return XRDSDocument{
		XMLNSXrds: "xri://$xrds",
		XMLNS:     "xri://$xrd*($v*2.0)",
		XRD:       XRD{Services: services},
	}
}

func (h *Handlers) entryURL() string {
	return h.provider.BaseURL() + "openid/entry"
}

// handleIndex serves the provider root. Yadis-aware relying parties get
// the discovery document directly or via the X-XRDS-Location header.
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/xrds+xml") {
		h.handleProviderXRDS(w, r)
		return
	}
	w.Header().Set("X-XRDS-Location", h.provider.BaseURL()+"openid/xrds")
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(generateIndexPage(h.entryURL())))
}

// handleProviderXRDS serves the OP identifier document used when the
// relying party starts from the provider itself (identifier select).
func (h *Handlers) handleProviderXRDS(w http.ResponseWriter, r *http.Request) {
	doc := newXRDS(XRDSService{
		Priority: 0,
		Types:    []string{serviceTypeServer},
		URI:      h.entryURL(),
	})
	writeXRDS(w, doc)
}

// handleUserIdentity serves the claimed identifier page. Relying parties
// fetch it to discover the OP endpoint for that user.
func (h *Handlers) handleUserIdentity(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if user == "" {
		http.NotFound(w, r)
		return
	}

	doc := newXRDS(XRDSService{
		Priority: 0,
		Types:    []string{serviceTypeSignon},
		URI:      h.entryURL(),
		LocalID:  h.provider.IdentityURL(user),
	})
	writeXRDS(w, doc)
}

func writeXRDS(w http.ResponseWriter, doc XRDSDocument) {
	w.Header().Set("Content-Type", "application/xrds+xml")
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(doc); err != nil {
		slog.Error("xrds encoding failed", "error", err)
	}
}
