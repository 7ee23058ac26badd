package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/ibras0696/m-django-work/internal/idgen"
)

// User validation errors.
var (
	ErrEmptyUsername    = errors.New("username cannot be empty")
	ErrUsernameTooLong  = errors.New("username must be at most 150 characters")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters long")
)

// MaxUsernameLength bounds the username column.
const MaxUsernameLength = 150

// User is an account that owns tasks. Accounts created through the bot have
// no password and authenticate only through the internal bot endpoint.
type User struct {
	ID             idgen.ID  `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Password       string    `json:"-"` // plaintext, only set while registering
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUser returns a user with the given credentials. The caller hashes the
// password before storing the user.
func NewUser(username, email, password string) (*User, error) {
	u := &User{
		Username:  strings.TrimSpace(username),
		Email:     strings.TrimSpace(email),
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks the user fields. Email and password are optional.
func (u *User) Validate() error {
	if u.Username == "" {
		return ErrEmptyUsername
	}
	if len(u.Username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if u.Email != "" && !validateEmailFormat(u.Email) {
		return ErrInvalidEmail
	}
	if u.Password != "" {
		if len(u.Password) < 8 {
			return ErrPasswordTooShort
		}
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	}
	return nil
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.HashedPassword != ""
}

// validateEmailFormat requires one @ with a dotted domain after it.
func validateEmailFormat(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') {
		return false
	}
	domainPart := email[at+1:]
	dot := strings.IndexByte(domainPart, '.')
	return dot > 0 && dot < len(domainPart)-1
}
