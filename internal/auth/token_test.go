package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(testSecret)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestTokenIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenIssuer([]byte("too-short")); err == nil {
		t.Error("expected error for secret under 32 bytes")
	}
}

func TestMintAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)

	token, expiresAt, err := issuer.Mint("42", RoleVoter)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !expiresAt.After(time.Now().Add(23 * time.Hour)) {
		t.Errorf("voter session expiry %v, want roughly 24h out", expiresAt)
	}

	id, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Subject != "42" || id.Role != RoleVoter {
		t.Errorf("identity = %+v, want subject 42 role voter", id)
	}
}

func TestAdminSessionShorterThanVoter(t *testing.T) {
	issuer := newTestIssuer(t)

	_, voterExp, err := issuer.Mint("42", RoleVoter)
	if err != nil {
		t.Fatalf("mint voter: %v", err)
	}
	_, adminExp, err := issuer.Mint("president", RoleAdmin)
	if err != nil {
		t.Fatalf("mint admin: %v", err)
	}
	if !adminExp.Before(voterExp) {
		t.Errorf("admin expiry %v should be before voter expiry %v", adminExp, voterExp)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Verify(token); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Verify(%q): err = %v, want ErrUnauthenticated", token, err)
		}
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewTokenIssuer([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	token, _, err := other.Mint("42", RoleVoter)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Verify: err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t)

	claims := sessionClaims{
		Role: RoleVoter,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Verify: err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	issuer := newTestIssuer(t)

	claims := sessionClaims{
		Role: RoleVoter,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Verify: err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	issuer := newTestIssuer(t)

	claims := sessionClaims{
		Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Verify: err = %v, want ErrUnauthenticated", err)
	}
}

func TestAuthorize(t *testing.T) {
	issuer := newTestIssuer(t)

	voterToken, _, err := issuer.Mint("42", RoleVoter)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := issuer.Authorize(voterToken, RoleVoter); err != nil {
		t.Errorf("voter token as voter: %v", err)
	}
	if _, err := issuer.Authorize(voterToken, RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("voter token as admin: err = %v, want ErrForbidden", err)
	}
	if _, err := issuer.Authorize("garbage", RoleVoter); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("garbage token: err = %v, want ErrUnauthenticated", err)
	}
}
