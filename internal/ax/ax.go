// Package ax implements the OpenID Attribute Exchange 1.0 extension on the
// provider side: recognizing a fetch request attached to an authentication
// request and answering it with attribute values derived from the verified
// user identifier.
package ax

import (
	"sort"
	"strings"

	"github.com/ParleSec/openid-provider/internal/openid"
)

// Namespace is the AX 1.0 extension namespace URI.
const Namespace = "http://openid.net/srv/ax/1.0"

// Attribute type URIs this provider can answer.
const (
	TypeEmail       = "http://axschema.org/contact/email"
	TypeEmailLegacy = "http://schema.openid.net/contact/email"
	TypeFriendly    = "http://axschema.org/namePerson/friendly"
)

// FetchRequest is a parsed fetch-type AX request: the namespace alias the
// relying party chose and the attribute aliases it mapped to type URIs.
type FetchRequest struct {
	Alias string
	Types map[string]string
}

// ParseFetchRequest looks for an AX fetch request among the openid.*
// parameters. The extension is keyed by whatever namespace alias the
// requester declared, so the parameter set is scanned for an
// "openid.ns.<alias>" binding to the AX namespace. Returns false when the
// extension is absent or is not a fetch request.
func ParseFetchRequest(p openid.Params) (*FetchRequest, bool) {
	alias := ""
	for key, value := range p {
		if value == Namespace && strings.HasPrefix(key, "openid.ns.") {
			alias = strings.TrimPrefix(key, "openid.ns.")
			break
		}
	}
	if alias == "" {
		return nil, false
	}
	if p["openid."+alias+".mode"] != "fetch_request" {
		return nil, false
	}

	req := &FetchRequest{Alias: alias, Types: make(map[string]string)}
	typePrefix := "openid." + alias + ".type."
	for key, value := range p {
		if strings.HasPrefix(key, typePrefix) {
			req.Types[strings.TrimPrefix(key, typePrefix)] = value
		}
	}
	return req, true
}

// Responder derives attribute values from a verified user identifier.
// Everything released here is mechanical: the identifier was already
// confirmed to the realm, so no further consent round trip is needed.
type Responder struct {
	emailDomain string
}

// NewResponder creates a responder that forms email addresses under the
// given domain suffix.
func NewResponder(emailDomain string) *Responder {
	return &Responder{emailDomain: emailDomain}
}

// Respond builds the fetch-response extension for req. Attribute type URIs
// the provider does not recognize are omitted; partial release is valid
// per the extension. Returns nil when no requested attribute is known.
func (r *Responder) Respond(req *FetchRequest, userID string) openid.Extension {
	resp := &fetchResponse{alias: req.Alias}
	for attrAlias, typeURI := range req.Types {
		switch typeURI {
		case TypeEmail, TypeEmailLegacy:
			resp.add(attrAlias, typeURI, userID+"@"+r.emailDomain)
		case TypeFriendly:
			resp.add(attrAlias, typeURI, userID)
		}
	}
	if len(resp.attrs) == 0 {
		return nil
	}
	sort.Slice(resp.attrs, func(i, j int) bool { return resp.attrs[i].alias < resp.attrs[j].alias })
	return resp
}

type attribute struct {
	alias   string
	typeURI string
	value   string
}

// fetchResponse attaches AX fetch-response fields to an assertion. The
// fields are returned for inclusion in the signed list so the relying
// party can trust the attribute values.
type fetchResponse struct {
	alias string
	attrs []attribute
}

func (f *fetchResponse) add(alias, typeURI, value string) {
	f.attrs = append(f.attrs, attribute{alias: alias, typeURI: typeURI, value: value})
}

// Apply implements openid.Extension.
func (f *fetchResponse) Apply(m *openid.Message) []string {
	signed := []string{"ns." + f.alias, f.alias + ".mode"}
	m.Set("ns."+f.alias, Namespace)
	m.Set(f.alias+".mode", "fetch_response")
	for _, a := range f.attrs {
		typeField := f.alias + ".type." + a.alias
		valueField := f.alias + ".value." + a.alias
		m.Set(typeField, a.typeURI)
		m.Set(valueField, a.value)
		signed = append(signed, typeField, valueField)
	}
	return signed
}
