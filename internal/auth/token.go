package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthenticated = errors.New("missing or invalid session token")
	ErrForbidden       = errors.New("insufficient role")
)

const (
	RoleVoter = "voter"
	RoleAdmin = "admin"

	voterSessionTTL = 24 * time.Hour
	adminSessionTTL = 12 * time.Hour
)

// Identity is the verified subject of a session token.
type Identity struct {
	Subject string
	Role    string
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed, stateless session tokens.
// Expiry is enforced on every Verify; there is no revocation list.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret []byte) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenIssuer{secret: secret}, nil
}

// Mint signs a session token for the subject. Voter sessions live 24h,
// admin sessions 12h.
func (t *TokenIssuer) Mint(subject, role string) (string, time.Time, error) {
	ttl := voterSessionTTL
	if role == RoleAdmin {
		ttl = adminSessionTTL
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	claims := sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses and validates a session token, returning the identity it
// carries. Expired, malformed, and wrongly-signed tokens all come back as
// ErrUnauthenticated.
func (t *TokenIssuer) Verify(token string) (Identity, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", tok.Method.Alg())
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}
	if claims.Subject == "" || (claims.Role != RoleVoter && claims.Role != RoleAdmin) {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Subject: claims.Subject, Role: claims.Role}, nil
}

// Authorize verifies the token and checks the role in one step: the single
// authorization boundary every protected operation passes through.
func (t *TokenIssuer) Authorize(token, requiredRole string) (Identity, error) {
	id, err := t.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	if id.Role != requiredRole {
		return Identity{}, ErrForbidden
	}
	return id, nil
}
