package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the decoded payload of an access token.
type AccessClaims struct {
	UserID string   `json:"uid"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// RefreshClaims is the decoded payload of a refresh token. Refresh tokens
// deliberately carry no roles; grants are re-resolved at refresh time.
type RefreshClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Manager signs and verifies Plume credentials.
type Manager struct {
	cfg           Config
	accessSecret  []byte
	refreshSecret []byte
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:           cfg,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
	}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// IssueAccess signs a new access token for the given identity snapshot.
// The roles slice is embedded as-is; callers must pass a fresh read.
func (m *Manager) IssueAccess(userID, email string, roles []string, now time.Time) (string, error) {
	if m == nil {
		return "", ErrConfig
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: empty user id", ErrTokenInvalid)
	}
	if roles == nil {
		roles = []string{}
	}

	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("token: sign access: %w", err)
	}
	return signed, nil
}

// IssueRefresh signs a new refresh token.
func (m *Manager) IssueRefresh(userID, email string, now time.Time) (string, error) {
	if m == nil {
		return "", ErrConfig
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: empty user id", ErrTokenInvalid)
	}

	claims := RefreshClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.RefreshTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("token: sign refresh: %w", err)
	}
	return signed, nil
}

// VerifyAccess checks signature, algorithm, issuer, and lifetime of an
// access token. Expired-but-authentic tokens return ErrTokenExpired; any
// other defect returns ErrTokenInvalid.
func (m *Manager) VerifyAccess(raw string) (AccessClaims, error) {
	if m == nil {
		return AccessClaims{}, ErrConfig
	}
	var claims AccessClaims
	if err := m.verify(raw, &claims, m.accessSecret); err != nil {
		return AccessClaims{}, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return AccessClaims{}, fmt.Errorf("%w: missing uid claim", ErrTokenInvalid)
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token. A refresh token is never valid
// under the access secret and vice versa.
func (m *Manager) VerifyRefresh(raw string) (RefreshClaims, error) {
	if m == nil {
		return RefreshClaims{}, ErrConfig
	}
	var claims RefreshClaims
	if err := m.verify(raw, &claims, m.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return RefreshClaims{}, fmt.Errorf("%w: missing uid claim", ErrTokenInvalid)
	}
	return claims, nil
}

func (m *Manager) verify(raw string, claims jwt.Claims, secret []byte) error {
	if strings.TrimSpace(raw) == "" {
		return ErrTokenInvalid
	}

	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithLeeway(m.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
