// Package secrets mints operator tokens and stores them as bcrypt hashes, so
// configuration never has to hold the admin token in clear text.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "certledger/pkg/domain-errors"
)

const tokenBytes = 32

// Generate returns a fresh random token, base64url without padding.
func Generate() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Hash bcrypts token at the default cost.
func Hash(token string) (string, error) {
	return hashWithCost(token, bcrypt.DefaultCost)
}

func hashWithCost(token string, cost int) (string, error) {
	if token == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token must not be empty")
	}
	out, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	switch {
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", dErrors.New(dErrors.CodeInvalidInput, "token exceeds 72 bytes")
	case err != nil:
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "bcrypt token")
	}
	return string(out), nil
}

// Verify checks token against a bcrypt hash. A wrong token is
// CodeUnauthorized; an unreadable hash is CodeInternal.
func Verify(token, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return dErrors.New(dErrors.CodeUnauthorized, "token does not match")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "compare token hash")
	}
}
