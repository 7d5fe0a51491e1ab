package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshite737-crypto/haste/internal/model"
)

const (
	secret = "test-secret"
	anonID = "5f0c1f9e-8a4b-4c3d-9e2f-1a2b3c4d5e6f"
)

func newResolver() *Resolver {
	return NewResolver(secret, "haste_id", 365*24*time.Hour, false)
}

func TestResolve_MintsWhenNothingPresent(t *testing.T) {
	r := newResolver()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)

	a := r.Resolve(req)
	b := r.Resolve(req)
	assert.True(t, a.Minted)
	assert.False(t, a.Authenticated)
	assert.Len(t, string(a.Identity), 36)
	assert.NotEqual(t, a.Identity, b.Identity)
}

func TestResolve_CookieWins(t *testing.T) {
	r := newResolver()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.AddCookie(&http.Cookie{Name: "haste_id", Value: anonID})

	res := r.Resolve(req)
	assert.Equal(t, model.Identity(anonID), res.Identity)
	assert.False(t, res.Minted)
}

func TestResolve_TokenBeatsCookie(t *testing.T) {
	r := newResolver()
	tok, err := r.Issue("acct-42", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.AddCookie(&http.Cookie{Name: "haste_id", Value: anonID})

	res := r.Resolve(req)
	assert.Equal(t, model.Identity("acct-42"), res.Identity)
	assert.True(t, res.Authenticated)
}

func TestResolve_OwnerRole(t *testing.T) {
	r := newResolver()
	tok, err := r.Issue("", RoleOwner, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	res := r.Resolve(req)
	assert.Equal(t, model.OwnerIdentity, res.Identity)
	assert.True(t, res.Owner)
	assert.True(t, res.Authenticated)
}

func TestResolve_AccountTokenIsNotOwner(t *testing.T) {
	r := newResolver()
	tok, err := r.Issue("acct-42", "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.False(t, r.Resolve(req).Owner)

	// an account named like the owner identity cannot borrow it
	tok, err = r.Issue(string(model.OwnerIdentity), "", time.Hour)
	require.NoError(t, err)
	_, err = r.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolve_RejectsForeignCookieValues(t *testing.T) {
	r := newResolver()
	for _, v := range []string{string(model.OwnerIdentity), "OWNER", "acct-42", "anon-1"} {
		t.Run(v, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req.AddCookie(&http.Cookie{Name: "haste_id", Value: v})
			res := r.Resolve(req)
			assert.True(t, res.Minted)
			assert.False(t, res.Owner)
			assert.NotEqual(t, model.Identity(v), res.Identity)
			assert.Len(t, string(res.Identity), 36)
		})
	}
}

func TestResolve_BadTokensFallThrough(t *testing.T) {
	r := newResolver()
	other := NewResolver("other-secret", "haste_id", time.Hour, false)
	foreign, err := other.Issue("acct-1", "", time.Hour)
	require.NoError(t, err)
	expired, err := r.Issue("acct-1", "", -time.Minute)
	require.NoError(t, err)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AccountID: "acct-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"wrong secret": "Bearer " + foreign,
		"expired":      "Bearer " + expired,
		"alg none":     "Bearer " + unsigned,
		"bad scheme":   "Token " + foreign,
		"garbage":      "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req.Header.Set("Authorization", header)
			req.AddCookie(&http.Cookie{Name: "haste_id", Value: anonID})
			res := r.Resolve(req)
			assert.Equal(t, model.Identity(anonID), res.Identity)
			assert.False(t, res.Authenticated)
		})
	}
}

func TestVerify_NoSecretDisablesTokens(t *testing.T) {
	r := NewResolver("", "haste_id", time.Hour, false)
	_, err := r.Issue("acct-1", "", time.Hour)
	assert.Error(t, err)
	_, err = r.Verify("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSetCookie(t *testing.T) {
	r := NewResolver(secret, "haste_id", 365*24*time.Hour, true, WithIDGenerator(func() string { return "fixed" }))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	res := r.Resolve(req)
	require.Equal(t, model.Identity("fixed"), res.Identity)

	w := httptest.NewRecorder()
	r.SetCookie(w, res.Identity)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "haste_id", c.Name)
	assert.Equal(t, "fixed", c.Value)
	assert.Equal(t, 365*24*60*60, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
}
