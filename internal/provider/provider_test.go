package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParleSec/openid-provider/internal/ax"
	"github.com/ParleSec/openid-provider/internal/openid"
	"github.com/ParleSec/openid-provider/internal/sessionstore"
	"github.com/ParleSec/openid-provider/internal/verifier"
	"github.com/ParleSec/openid-provider/pkg/models"
)

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New("not-absolute", nil, nil, nil, nil)
	require.Error(t, err)
}

func TestIdentityURL(t *testing.T) {
	p := newTestProvider(t)
	assert.Equal(t, "https://op.example/~alice", p.IdentityURL("alice"))
}

func TestIdentityURLAddsTrailingSlash(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	p, err := New("https://op.example", nil, nil, nil, store)
	require.NoError(t, err)
	assert.Equal(t, "https://op.example/", p.BaseURL())
	assert.Equal(t, "https://op.example/~bob", p.IdentityURL("bob"))
}

func TestResolveReturnsSameSessionForToken(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	token := p.NewToken()

	s1, err := p.Resolve(ctx, token)
	require.NoError(t, err)
	s2, err := p.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	other, err := p.Resolve(ctx, p.NewToken())
	require.NoError(t, err)
	assert.NotSame(t, s1, other)
}

func TestResolveRehydratesFromStore(t *testing.T) {
	shared := openid.NewMemoryAssociationStore()
	private := openid.NewMemoryAssociationStore()
	store := sessionstore.NewMemoryStore()
	t.Cleanup(func() {
		shared.Close()
		private.Close()
		store.Close()
	})

	engine := openid.NewEngine("https://op.example/openid/entry", shared, private)
	idv := verifier.NewStaticVerifier([]models.User{{ID: "alice", Password: "secret"}})
	ctx := context.Background()

	// Another instance already persisted this session.
	rec := &models.SessionRecord{
		Token:          "shared-token",
		Authenticated:  true,
		UserID:         "alice",
		ApprovedRealms: []string{"rp.example"},
		CreatedAt:      time.Now(),
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, rec))

	p, err := New("https://op.example/", engine, idv, ax.NewResponder("op.example"), store)
	require.NoError(t, err)

	sess, err := p.Resolve(ctx, "shared-token")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, "alice", sess.VerifiedUserID())
	assert.True(t, sess.IsApproved("rp.example"))

	// The rehydrated session completes a checkid flow without a new login.
	resp, err := sess.HandleEntryPoint(ctx, checkidParams(openid.ModeCheckIDSetup, "https://rp.example/cb"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RedirectURL)
}

func TestResolveTreatsMissingRecordAsNewSession(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	sess, err := p.Resolve(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
}

func TestDestroyForgetsSession(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	token := p.NewToken()

	s1, err := p.Resolve(ctx, token)
	require.NoError(t, err)
	require.NoError(t, p.Destroy(ctx, token))

	s2, err := p.Resolve(ctx, token)
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.False(t, s2.Authenticated())
}
