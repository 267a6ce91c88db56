package openid

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
)

// OpenID Authentication 2.0 protocol constants
const (
	// NS is the OpenID 2.0 namespace value carried in openid.ns
	NS = "http://specs.openid.net/auth/2.0"

	// IdentifierSelect is the placeholder identifier used by relying parties
	// that let the provider choose the identity
	IdentifierSelect = "http://specs.openid.net/auth/2.0/identifier_select"
)

// Request modes (OpenID 2.0 Section 8, 9, 11.4)
const (
	ModeAssociate     = "associate"
	ModeCheckIDSetup  = "checkid_setup"
	ModeCheckIDImmed  = "checkid_immediate"
	ModeCheckAuth     = "check_authentication"
	ModeIDRes         = "id_res"
	ModeCancel        = "cancel"
	ModeSetupNeeded   = "setup_needed"
	ModeError         = "error"
)

// Params holds the raw request parameters of one inbound OpenID message.
// Parameter names keep their wire form ("openid.mode", "openid.ns.ax", ...).
type Params map[string]string

// ParamsFromValues flattens query/form values into Params. OpenID 2.0
// parameters are single-valued; extra values are ignored.
func ParamsFromValues(v url.Values) Params {
	p := make(Params, len(v))
	for key, vals := range v {
		if len(vals) > 0 {
			p[key] = vals[0]
		}
	}
	return p
}

// Field returns the value of the "openid."-prefixed parameter with the
// given bare name, e.g. Field("mode") reads "openid.mode".
func (p Params) Field(name string) string {
	return p["openid."+name]
}

// Has reports whether the "openid."-prefixed parameter is present.
func (p Params) Has(name string) bool {
	_, ok := p["openid."+name]
	return ok
}

// Message is an outbound OpenID message: an ordered list of fields
// (names without the "openid." prefix) plus an optional indirect-response
// destination.
type Message struct {
	keys        []string
	values      map[string]string
	destination string
}

// NewMessage creates an empty message carrying the OpenID 2.0 namespace.
func NewMessage() *Message {
	m := &Message{values: make(map[string]string)}
	m.Set("ns", NS)
	return m
}

// Set adds or replaces a field. Insertion order is preserved for
// key-value form encoding.
func (m *Message) Set(name, value string) {
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = value
}

// Get returns a field value, or "" if absent.
func (m *Message) Get(name string) string {
	return m.values[name]
}

// Has reports whether the field is present.
func (m *Message) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Keys returns all field names in insertion order.
func (m *Message) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// SetDestination records the URL an indirect response should be sent to.
func (m *Message) SetDestination(u string) {
	m.destination = u
}

// KeyValueForm encodes the message as Key-Value Form
// (OpenID 2.0 Section 4.1.1): one "name:value\n" line per field.
func (m *Message) KeyValueForm() []byte {
	var buf bytes.Buffer
	for _, k := range m.keys {
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(m.values[k])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DestinationURL returns the URL an indirect response redirects to, with
// every field appended as an "openid."-prefixed query parameter
// (OpenID 2.0 Section 4.1.2, 5.2.3).
func (m *Message) DestinationURL() (string, error) {
	if m.destination == "" {
		return "", &ProtocolError{Reason: "message has no destination"}
	}
	u, err := url.Parse(m.destination)
	if err != nil {
		return "", &ProtocolError{Reason: fmt.Sprintf("bad destination %q: %v", m.destination, err)}
	}
	q := u.Query()
	for _, k := range m.keys {
		q.Set("openid."+k, m.values[k])
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// signatureBase builds the Key-Value Form string that gets signed: one
// "name:value\n" line per entry of the signed list, values taken from
// the message (OpenID 2.0 Section 6.1).
func (m *Message) signatureBase(signed []string) []byte {
	var buf bytes.Buffer
	for _, name := range signed {
		buf.WriteString(name)
		buf.WriteByte(':')
		buf.WriteString(m.values[name])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// signatureBaseFromParams rebuilds the signed Key-Value Form from inbound
// parameters, used by check_authentication to re-verify a relayed response.
func signatureBaseFromParams(p Params, signed []string) []byte {
	var buf bytes.Buffer
	for _, name := range signed {
		buf.WriteString(name)
		buf.WriteByte(':')
		buf.WriteString(p.Field(name))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// splitSignedList parses the comma-separated openid.signed field.
func splitSignedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ProtocolError reports an OpenID message that could not be parsed or
// validated: bad signature, unknown association handle, malformed field.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "openid: " + e.Reason
}

// ErrorResponse builds the direct-response body for a protocol error
// (OpenID 2.0 Section 5.1.2.2).
func ErrorResponse(reason string) *Message {
	m := NewMessage()
	m.Set("error", reason)
	return m
}
