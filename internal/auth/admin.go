package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Admin is the single vendor account allowed into the admin API. The hash
// is a bcrypt hash produced by HashPassword.
type Admin struct {
	Email        string
	PasswordHash string
}

func (a Admin) Configured() bool {
	return a.Email != "" && a.PasswordHash != ""
}

// Authenticate checks a login attempt. The password is always compared so
// a wrong e-mail costs the same as a wrong password.
func (a Admin) Authenticate(email, password string) error {
	if !a.Configured() {
		return ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(a.Email)),
	) == 1
	passwordOK := CheckPassword(password, a.PasswordHash)
	if !emailOK || !passwordOK {
		return ErrInvalidCredentials
	}
	return nil
}
