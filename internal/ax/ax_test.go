package ax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParleSec/openid-provider/internal/openid"
)

func TestParseFetchRequest(t *testing.T) {
	p := openid.Params{
		"openid.mode":          "checkid_setup",
		"openid.ns.ax":         Namespace,
		"openid.ax.mode":       "fetch_request",
		"openid.ax.type.email": TypeEmail,
		"openid.ax.type.nick":  TypeFriendly,
		"openid.ax.required":   "email",
	}

	req, ok := ParseFetchRequest(p)
	require.True(t, ok)
	assert.Equal(t, "ax", req.Alias)
	assert.Equal(t, map[string]string{
		"email": TypeEmail,
		"nick":  TypeFriendly,
	}, req.Types)
}

func TestParseFetchRequestCustomAlias(t *testing.T) {
	p := openid.Params{
		"openid.ns.ext1":         Namespace,
		"openid.ext1.mode":       "fetch_request",
		"openid.ext1.type.email": TypeEmailLegacy,
	}

	req, ok := ParseFetchRequest(p)
	require.True(t, ok)
	assert.Equal(t, "ext1", req.Alias)
}

func TestParseFetchRequestAbsent(t *testing.T) {
	tests := []struct {
		name string
		p    openid.Params
	}{
		{"no extension", openid.Params{"openid.mode": "checkid_setup"}},
		{"other namespace", openid.Params{"openid.ns.sreg": "http://openid.net/extensions/sreg/1.1"}},
		{"store request", openid.Params{
			"openid.ns.ax":   Namespace,
			"openid.ax.mode": "store_request",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseFetchRequest(tt.p)
			assert.False(t, ok)
		})
	}
}

func TestResponderRespond(t *testing.T) {
	r := NewResponder("op.example")
	req := &FetchRequest{
		Alias: "ax",
		Types: map[string]string{
			"email":   TypeEmail,
			"nick":    TypeFriendly,
			"unknown": "http://axschema.org/birthDate",
		},
	}

	ext := r.Respond(req, "alice")
	require.NotNil(t, ext)

	m := openid.NewMessage()
	signed := ext.Apply(m)

	assert.Equal(t, Namespace, m.Get("ns.ax"))
	assert.Equal(t, "fetch_response", m.Get("ax.mode"))
	assert.Equal(t, TypeEmail, m.Get("ax.type.email"))
	assert.Equal(t, "alice@op.example", m.Get("ax.value.email"))
	assert.Equal(t, "alice", m.Get("ax.value.nick"))

	// Unrecognized types are omitted, not errors.
	assert.False(t, m.Has("ax.type.unknown"))
	assert.False(t, m.Has("ax.value.unknown"))

	// Every attribute field must be covered by the signature.
	assert.ElementsMatch(t, []string{
		"ns.ax", "ax.mode",
		"ax.type.email", "ax.value.email",
		"ax.type.nick", "ax.value.nick",
	}, signed)
}

func TestResponderRespondNothingKnown(t *testing.T) {
	r := NewResponder("op.example")
	req := &FetchRequest{
		Alias: "ax",
		Types: map[string]string{"dob": "http://axschema.org/birthDate"},
	}
	assert.Nil(t, r.Respond(req, "alice"))
}

func TestResponderLegacyEmailType(t *testing.T) {
	r := NewResponder("op.example")
	req := &FetchRequest{
		Alias: "ax",
		Types: map[string]string{"email": TypeEmailLegacy},
	}

	ext := r.Respond(req, "bob")
	require.NotNil(t, ext)

	m := openid.NewMessage()
	ext.Apply(m)
	assert.Equal(t, "bob@op.example", m.Get("ax.value.email"))
}
