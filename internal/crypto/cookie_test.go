package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieSignerRoundTrip(t *testing.T) {
	ks, err := NewKeySet()
	require.NoError(t, err)
	signer := NewCookieSigner(ks, "https://op.example/")

	value, err := signer.Issue("session-token-123", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, value)

	token, err := signer.Parse(value)
	require.NoError(t, err)
	assert.Equal(t, "session-token-123", token)
}

func TestCookieSignerRejectsGarbage(t *testing.T) {
	ks, err := NewKeySet()
	require.NoError(t, err)
	signer := NewCookieSigner(ks, "https://op.example/")

	_, err = signer.Parse("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestCookieSignerRejectsForeignKey(t *testing.T) {
	ks1, err := NewKeySet()
	require.NoError(t, err)
	ks2, err := NewKeySet()
	require.NoError(t, err)

	value, err := NewCookieSigner(ks1, "https://op.example/").Issue("tok", time.Hour)
	require.NoError(t, err)

	_, err = NewCookieSigner(ks2, "https://op.example/").Parse(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestCookieSignerRejectsWrongIssuer(t *testing.T) {
	ks, err := NewKeySet()
	require.NoError(t, err)

	value, err := NewCookieSigner(ks, "https://other.example/").Issue("tok", time.Hour)
	require.NoError(t, err)

	_, err = NewCookieSigner(ks, "https://op.example/").Parse(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestCookieSignerRejectsExpired(t *testing.T) {
	ks, err := NewKeySet()
	require.NoError(t, err)
	signer := NewCookieSigner(ks, "https://op.example/")

	value, err := signer.Issue("tok", -time.Minute)
	require.NoError(t, err)

	_, err = signer.Parse(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)
}
