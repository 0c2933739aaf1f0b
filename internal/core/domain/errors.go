package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found in the caller's organization
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation collides with existing state (e.g. duplicate path)
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument indicates the input is malformed or out of range
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState indicates the resource is not in a state that allows the operation
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidOperation indicates the operation violates a structural rule
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnavailable indicates a required external collaborator could not be reached
	ErrUnavailable = errors.New("service unavailable")

	// ErrUnauthorized indicates authentication failed or is missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")
)
