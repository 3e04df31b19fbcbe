// Package password реализует хеширование и проверку паролей через bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxBytes предел длины пароля, который bcrypt учитывает целиком.
const maxBytes = 72

var (
	// ErrMismatch пароль не соответствует хэшу.
	ErrMismatch = errors.New("password does not match")
	// ErrTooLong пароль длиннее 72 байт.
	ErrTooLong = errors.New("password is longer than 72 bytes")
)

// GetHash возвращает bcrypt-хэш пароля.
func GetHash(raw string) (string, error) {
	const op = "password.GetHash"
	if len(raw) > maxBytes {
		return "", fmt.Errorf("%s: %w", op, ErrTooLong)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash возвращает nil, если пароль соответствует хэшу, и ErrMismatch, если нет.
// Остальные ошибки означают испорченный хэш.
func CompareHash(hash, raw string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
