// Package identity maps an inbound request to the stable key that scopes
// quota, memory and owner grants.
package identity

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/harshite737-crypto/haste/internal/model"
)

// RoleOwner is the token role that resolves to model.OwnerIdentity.
const RoleOwner = "owner"

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carried by account tokens.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	Role      string `json:"role,omitempty"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Identity model.Identity
	// Minted is set when a fresh anonymous id was generated and must be
	// persisted by the caller.
	Minted bool
	// Authenticated is set when the identity came from a verified token.
	Authenticated bool
	// Owner is set when a verified token carries RoleOwner.
	Owner bool
}

// Resolver resolves identities from bearer tokens and the anonymous cookie.
type Resolver struct {
	secret     []byte
	cookieName string
	maxAge     time.Duration
	secure     bool
	newID      func() string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIDGenerator overrides the anonymous id generator.
func WithIDGenerator(f func() string) Option {
	return func(r *Resolver) { r.newID = f }
}

// NewResolver creates a resolver. An empty secret disables token auth.
func NewResolver(secret, cookieName string, maxAge time.Duration, secure bool, opts ...Option) *Resolver {
	r := &Resolver{
		secret:     []byte(secret),
		cookieName: cookieName,
		maxAge:     maxAge,
		secure:     secure,
		newID:      func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve picks the identity for req: a verified account token wins, then the
// anonymous cookie, else a freshly minted id. An invalid token is ignored and
// resolution falls through to the cookie.
func (r *Resolver) Resolve(req *http.Request) Resolution {
	if tok, err := extractBearer(req); err == nil {
		if claims, err := r.Verify(tok); err == nil {
			if claims.Role == RoleOwner {
				return Resolution{Identity: model.OwnerIdentity, Authenticated: true, Owner: true}
			}
			return Resolution{Identity: model.Identity(claims.AccountID), Authenticated: true}
		}
	}
	if c, err := req.Cookie(r.cookieName); err == nil {
		if id, ok := anonymousID(c.Value); ok {
			return Resolution{Identity: id}
		}
	}
	return Resolution{Identity: model.Identity(r.newID()), Minted: true}
}

// anonymousID accepts only values this resolver could have minted. Anything
// else, including the literal owner identity or an account id, is replaced
// by a fresh id.
func anonymousID(v string) (model.Identity, bool) {
	u, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		return "", false
	}
	return model.Identity(u.String()), true
}

// Verify parses and validates an HS256 account token.
func (r *Resolver) Verify(token string) (*Claims, error) {
	if len(r.secret) == 0 {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return r.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleOwner && (claims.AccountID == "" || model.Identity(claims.AccountID) == model.OwnerIdentity) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue signs an account token valid for ttl. Used by operators and tests.
func (r *Resolver) Issue(accountID, role string, ttl time.Duration) (string, error) {
	if len(r.secret) == 0 {
		return "", errors.New("token signing disabled: no secret configured")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		AccountID: accountID,
		Role:      role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

// SetCookie persists a minted identity on the response.
func (r *Resolver) SetCookie(w http.ResponseWriter, id model.Identity) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.cookieName,
		Value:    string(id),
		Path:     "/",
		MaxAge:   int(r.maxAge / time.Second),
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// extractBearer returns the token of an "Authorization: Bearer <token>" header.
func extractBearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(h, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid Authorization header format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}
