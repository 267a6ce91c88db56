package openid

import (
	"crypto/sha1"
	"crypto/sha256"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssociationKeySizes(t *testing.T) {
	tests := []struct {
		assocType string
		keyLen    int
	}{
		{AssocHMACSHA1, sha1.Size},
		{AssocHMACSHA256, sha256.Size},
	}
	for _, tt := range tests {
		t.Run(tt.assocType, func(t *testing.T) {
			a, err := NewAssociation(tt.assocType, time.Hour, false)
			require.NoError(t, err)
			assert.Len(t, a.MACKey, tt.keyLen)
			assert.NotEmpty(t, a.Handle)
			assert.False(t, a.Expired())
			assert.Greater(t, a.ExpiresIn(), int64(3500))
		})
	}
}

func TestNewAssociationUnsupportedType(t *testing.T) {
	_, err := NewAssociation("HMAC-MD5", time.Hour, false)
	require.Error(t, err)
}

func TestAssociationSignVerify(t *testing.T) {
	a, err := NewAssociation(AssocHMACSHA256, time.Hour, true)
	require.NoError(t, err)

	base := []byte("op_endpoint:https://op.example/openid/entry\nmode:id_res\n")
	sig := a.Sign(base)
	assert.True(t, a.VerifySig(base, sig))
	assert.False(t, a.VerifySig([]byte("tampered:yes\n"), sig))

	sig[0] ^= 0xff
	assert.False(t, a.VerifySig(base, sig))
}

func TestDHKeyAgreement(t *testing.T) {
	// Both sides derive the same secret from each other's public key.
	server, err := newDHExchange(nil, nil)
	require.NoError(t, err)
	consumer, err := newDHExchange(nil, nil)
	require.NoError(t, err)

	s1 := server.sharedSecret(consumer.pub)
	s2 := consumer.sharedSecret(server.pub)
	assert.Zero(t, s1.Cmp(s2))
}

func TestEncryptMACKeyRoundTrip(t *testing.T) {
	a, err := NewAssociation(AssocHMACSHA256, time.Hour, false)
	require.NoError(t, err)

	secret := big.NewInt(123456789)
	enc, err := encryptMACKey(a.MACKey, secret, SessionDHSHA256)
	require.NoError(t, err)
	assert.NotEqual(t, a.MACKey, enc)

	// XOR with the same digest recovers the key.
	dec, err := encryptMACKey(enc, secret, SessionDHSHA256)
	require.NoError(t, err)
	assert.Equal(t, a.MACKey, dec)
}

func TestBtwoc(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want []byte
	}{
		{"high bit set gets padding", 0x80, []byte{0x00, 0x80}},
		{"no padding needed", 0x7f, []byte{0x7f}},
		{"zero", 0, []byte{0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := btwoc(big.NewInt(tt.in))
			assert.Equal(t, tt.want, got)
			assert.Zero(t, intFromBtwoc(got).Cmp(big.NewInt(tt.in)))
		})
	}
}
