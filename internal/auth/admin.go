package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is deliberately generic: callers cannot tell an
// unknown username from a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// dummyHash keeps the bcrypt cost constant when the username is unknown.
// Hash of a random throwaway string, never a valid password.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// AdminCredentials is the pre-provisioned admin credential store: a single
// username plus bcrypt password hash supplied through configuration.
type AdminCredentials struct {
	username     string
	passwordHash []byte
}

func NewAdminCredentials(username, passwordHash string) *AdminCredentials {
	return &AdminCredentials{username: username, passwordHash: []byte(passwordHash)}
}

// Check validates the username and password in constant time with respect
// to which of the two was wrong.
func (a *AdminCredentials) Check(username, password string) error {
	hash := a.passwordHash
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	if !userOK || len(hash) == 0 {
		hash = dummyHash
	}

	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if err != nil || !userOK {
		return ErrInvalidCredentials
	}
	return nil
}
