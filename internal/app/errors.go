package app

import "errors"

var (
	// ErrDuplicateUsername is returned when registering a taken username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidCredentials is returned when login credentials do not
	// match. Unknown user and wrong password share this error.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidInput covers missing or malformed required fields, such
	// as an IMAGE message without an image reference.
	ErrInvalidInput = errors.New("invalid input")
)
