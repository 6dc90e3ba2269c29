// Package validation holds input rules shared by the server handlers and the CLI.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"
)

var (
	// ErrInvalidUsername is wrapped by every username rule violation
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is wrapped by every password rule violation
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidEntityID is wrapped by every entity id rule violation
	ErrInvalidEntityID = errors.New("invalid entity id")
)

// usernamePattern: латинские буквы, цифры и подчеркивание
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 32

	MinPasswordLen = 8
	// MaxPasswordLen is the bcrypt input limit in bytes
	MaxPasswordLen = 72

	MaxEntityIDLen = 128
)

// ValidateUsername проверяет формат username: 3-32 символа [a-zA-Z0-9_]
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidUsername)
	case len(username) < MinUsernameLen:
		return fmt.Errorf("%w: username must be at least %d characters long", ErrInvalidUsername, MinUsernameLen)
	case len(username) > MaxUsernameLen:
		return fmt.Errorf("%w: username must not exceed %d characters", ErrInvalidUsername, MaxUsernameLen)
	case !usernamePattern.MatchString(username):
		return fmt.Errorf("%w: username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)", ErrInvalidUsername)
	}
	return nil
}

// ValidatePassword проверяет длину пароля в байтах
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidPassword)
	case len(password) < MinPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidPassword, MinPasswordLen)
	case len(password) > MaxPasswordLen:
		return fmt.Errorf("%w: password must not exceed %d bytes", ErrInvalidPassword, MaxPasswordLen)
	}
	return nil
}

// ValidateEntityID checks an id supplied by a client for a library record.
// Ids are opaque but must be printable and bounded since they become storage keys.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidEntityID)
	}
	if len(id) > MaxEntityIDLen {
		return fmt.Errorf("%w: id must not exceed %d bytes", ErrInvalidEntityID, MaxEntityIDLen)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: id must not contain whitespace or control characters", ErrInvalidEntityID)
		}
	}
	return nil
}
