package account

import "errors"

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailTaken         = errors.New("email already in use")
	ErrNotFound           = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
