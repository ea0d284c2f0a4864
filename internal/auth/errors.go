package auth

import "errors"

// Token errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token has expired")
	ErrScopeDenied  = errors.New("auth: scope not granted")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
)
