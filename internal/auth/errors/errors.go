package errors

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")

	ErrEmailTaken = errors.New("email is already registered")

	ErrTokenNotFound = errors.New("refresh token not found")
)
