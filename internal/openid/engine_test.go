package openid

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "https://op.example/openid/entry"

func newTestEngine(t *testing.T) (*Engine, *MemoryAssociationStore, *MemoryAssociationStore) {
	t.Helper()
	shared := NewMemoryAssociationStore()
	private := NewMemoryAssociationStore()
	t.Cleanup(func() {
		shared.Close()
		private.Close()
	})
	return NewEngine(testEndpoint, shared, private), shared, private
}

// paramsFromMessage relays an outbound message back as inbound parameters,
// the way a relying party forwards an assertion for verification.
func paramsFromMessage(m *Message) Params {
	p := make(Params)
	for _, k := range m.Keys() {
		p["openid."+k] = m.Get(k)
	}
	return p
}

func TestAssociationResponseNoEncryption(t *testing.T) {
	e, shared, _ := newTestEngine(t)
	ctx := context.Background()

	resp, err := e.AssociationResponse(ctx, Params{
		"openid.mode":         ModeAssociate,
		"openid.assoc_type":   AssocHMACSHA256,
		"openid.session_type": SessionNoEncryption,
	})
	require.NoError(t, err)

	assert.Equal(t, AssocHMACSHA256, resp.Get("assoc_type"))
	assert.Equal(t, SessionNoEncryption, resp.Get("session_type"))
	assert.NotEmpty(t, resp.Get("expires_in"))

	handle := resp.Get("assoc_handle")
	require.NotEmpty(t, handle)

	macKey, err := base64.StdEncoding.DecodeString(resp.Get("mac_key"))
	require.NoError(t, err)

	stored, err := shared.Load(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, stored.MACKey, macKey)
	assert.False(t, stored.Private)
}

func TestAssociationResponseDH(t *testing.T) {
	e, shared, _ := newTestEngine(t)
	ctx := context.Background()

	consumer, err := newDHExchange(nil, nil)
	require.NoError(t, err)

	resp, err := e.AssociationResponse(ctx, Params{
		"openid.mode":               ModeAssociate,
		"openid.assoc_type":         AssocHMACSHA256,
		"openid.session_type":       SessionDHSHA256,
		"openid.dh_consumer_public": base64.StdEncoding.EncodeToString(btwoc(consumer.pub)),
	})
	require.NoError(t, err)

	assert.False(t, resp.Has("mac_key"), "DH session must not expose the key in the clear")

	serverPubRaw, err := base64.StdEncoding.DecodeString(resp.Get("dh_server_public"))
	require.NoError(t, err)
	encKey, err := base64.StdEncoding.DecodeString(resp.Get("enc_mac_key"))
	require.NoError(t, err)

	// Consumer side of the key agreement.
	secret := consumer.sharedSecret(intFromBtwoc(serverPubRaw))
	digest := sha256.Sum256(btwoc(secret))
	macKey := make([]byte, len(encKey))
	for i := range encKey {
		macKey[i] = encKey[i] ^ digest[i]
	}

	stored, err := shared.Load(ctx, resp.Get("assoc_handle"))
	require.NoError(t, err)
	assert.Equal(t, stored.MACKey, macKey)
}

func TestAssociationResponseRejectsUnknownTypes(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AssociationResponse(ctx, Params{
		"openid.assoc_type":   "HMAC-MD5",
		"openid.session_type": SessionNoEncryption,
	})
	require.Error(t, err)

	_, err = e.AssociationResponse(ctx, Params{
		"openid.assoc_type":   AssocHMACSHA256,
		"openid.session_type": "cleartext",
	})
	require.Error(t, err)
}

func TestAuthResponseWithSharedAssociation(t *testing.T) {
	e, shared, _ := newTestEngine(t)
	ctx := context.Background()

	assocResp, err := e.AssociationResponse(ctx, Params{
		"openid.assoc_type":   AssocHMACSHA256,
		"openid.session_type": SessionNoEncryption,
	})
	require.NoError(t, err)
	handle := assocResp.Get("assoc_handle")

	identity := "https://op.example/~alice"
	resp, err := e.AuthResponse(ctx, Params{
		"openid.mode":         ModeCheckIDSetup,
		"openid.assoc_handle": handle,
		"openid.return_to":    "https://rp.example/cb",
	}, identity, identity)
	require.NoError(t, err)

	assert.Equal(t, ModeIDRes, resp.Get("mode"))
	assert.Equal(t, testEndpoint, resp.Get("op_endpoint"))
	assert.Equal(t, identity, resp.Get("claimed_id"))
	assert.Equal(t, identity, resp.Get("identity"))
	assert.Equal(t, handle, resp.Get("assoc_handle"))
	assert.False(t, resp.Has("invalidate_handle"))
	assert.NotEmpty(t, resp.Get("response_nonce"))

	// The relying party verifies with its own copy of the key.
	assoc, err := shared.Load(ctx, handle)
	require.NoError(t, err)
	sig, err := base64.StdEncoding.DecodeString(resp.Get("sig"))
	require.NoError(t, err)
	signed := splitSignedList(resp.Get("signed"))
	require.NotEmpty(t, signed)
	assert.True(t, assoc.VerifySig(resp.signatureBase(signed), sig))

	dest, err := resp.DestinationURL()
	require.NoError(t, err)
	u, err := url.Parse(dest)
	require.NoError(t, err)
	assert.Equal(t, "rp.example", u.Host)
}

func TestAuthResponseFallsBackToPrivateAssociation(t *testing.T) {
	e, _, private := newTestEngine(t)
	ctx := context.Background()

	identity := "https://op.example/~bob"
	resp, err := e.AuthResponse(ctx, Params{
		"openid.assoc_handle": "stale-handle",
		"openid.return_to":    "https://rp.example/cb",
	}, identity, identity)
	require.NoError(t, err)

	assert.Equal(t, "stale-handle", resp.Get("invalidate_handle"))
	assert.NotEqual(t, "stale-handle", resp.Get("assoc_handle"))

	assoc, err := private.Load(ctx, resp.Get("assoc_handle"))
	require.NoError(t, err)
	assert.True(t, assoc.Private)
}

func TestAuthResponseRequiresReturnTo(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.AuthResponse(context.Background(), Params{}, "id", "id")
	require.Error(t, err)
}

func TestVerifyRoundTrip(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	identity := "https://op.example/~carol"
	resp, err := e.AuthResponse(ctx, Params{
		"openid.return_to": "https://rp.example/cb",
	}, identity, identity)
	require.NoError(t, err)

	relayed := paramsFromMessage(resp)
	relayed["openid.mode"] = ModeCheckAuth

	verdict, err := e.Verify(ctx, relayed)
	require.NoError(t, err)
	assert.Equal(t, "true", verdict.Get("is_valid"))

	// The private association is consumed: replaying the same assertion
	// must not verify again.
	verdict, err = e.Verify(ctx, relayed)
	require.NoError(t, err)
	assert.Equal(t, "false", verdict.Get("is_valid"))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	identity := "https://op.example/~dave"
	resp, err := e.AuthResponse(ctx, Params{
		"openid.return_to": "https://rp.example/cb",
	}, identity, identity)
	require.NoError(t, err)

	relayed := paramsFromMessage(resp)
	relayed["openid.mode"] = ModeCheckAuth
	relayed["openid.identity"] = "https://op.example/~mallory"

	verdict, err := e.Verify(ctx, relayed)
	require.NoError(t, err)
	assert.Equal(t, "false", verdict.Get("is_valid"))
}

func TestVerifyEchoesInvalidateHandle(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	verdict, err := e.Verify(ctx, Params{
		"openid.mode":              ModeCheckAuth,
		"openid.invalidate_handle": "gone-handle",
	})
	require.NoError(t, err)
	assert.Equal(t, "gone-handle", verdict.Get("invalidate_handle"))
}

func TestVerifyKeepsLiveSharedHandle(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	assocResp, err := e.AssociationResponse(ctx, Params{
		"openid.assoc_type":   AssocHMACSHA256,
		"openid.session_type": SessionNoEncryption,
	})
	require.NoError(t, err)

	verdict, err := e.Verify(ctx, Params{
		"openid.mode":              ModeCheckAuth,
		"openid.invalidate_handle": assocResp.Get("assoc_handle"),
	})
	require.NoError(t, err)
	assert.False(t, verdict.Has("invalidate_handle"))
}

func TestMemoryAssociationStoreExpiry(t *testing.T) {
	store := NewMemoryAssociationStore()
	defer store.Close()
	ctx := context.Background()

	a, err := NewAssociation(AssocHMACSHA1, -time.Second, false)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, a))

	_, err = store.Load(ctx, a.Handle)
	assert.ErrorIs(t, err, ErrAssociationNotFound)
}
