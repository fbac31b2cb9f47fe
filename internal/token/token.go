// Package token issues and verifies the signed tokens that carry an
// authenticated user identity.
//
// Tokens are self-contained HS256 JWTs: validity is fully determined by the
// signature and the embedded expiry, never by server-side state. Access and
// refresh tokens are signed with separate secrets and carry a type claim so
// one kind can never be presented as the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Sentinel errors returned by Verify.
var (
	// ErrInvalidToken indicates a malformed token, a bad signature, a wrong
	// signing method, or a token of the wrong kind.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates a correctly signed token whose expiry has
	// passed. Callers must treat an expiry equal to the current instant as
	// expired.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the JWT claim set for both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Kind   Kind   `json:"typ"`
}

// Config holds the signing material and lifetimes for a Maker.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Maker issues and verifies token pairs. It holds no mutable state and is
// safe for concurrent use.
type Maker struct {
	cfg Config
}

const minSecretLen = 32

// NewMaker validates the configuration and returns a Maker.
func NewMaker(cfg Config) (*Maker, error) {
	if len(cfg.AccessSecret) < minSecretLen {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretLen)
	}
	if len(cfg.RefreshSecret) < minSecretLen {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretLen)
	}
	return &Maker{cfg: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Maker) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Maker) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// IssueAccess creates a short-lived access token for the given user.
func (m *Maker) IssueAccess(userID string) (string, time.Time, error) {
	return m.issue(userID, KindAccess, m.cfg.AccessSecret, m.cfg.AccessTTL)
}

// IssueRefresh creates a long-lived refresh token for the given user.
func (m *Maker) IssueRefresh(userID string) (string, time.Time, error) {
	return m.issue(userID, KindRefresh, m.cfg.RefreshSecret, m.cfg.RefreshTTL)
}

func (m *Maker) issue(userID string, kind Kind, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Kind:   kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, expiresAt, nil
}

// VerifyAccess checks an access token and returns the embedded user ID.
func (m *Maker) VerifyAccess(tokenString string) (string, error) {
	return m.verify(tokenString, KindAccess, m.cfg.AccessSecret)
}

// VerifyRefresh checks a refresh token and returns the embedded user ID.
func (m *Maker) VerifyRefresh(tokenString string) (string, error) {
	return m.verify(tokenString, KindRefresh, m.cfg.RefreshSecret)
}

// verify checks the signature first, then expiry, then the token kind.
// Signature failures and expiry map to distinct sentinels so callers can
// decide how much detail to expose.
func (m *Maker) verify(tokenString string, kind Kind, secret []byte) (string, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	if !parsed.Valid || claims.Kind != kind || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}
