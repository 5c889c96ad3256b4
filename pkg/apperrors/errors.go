package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrEmptyContent  = errors.New("content is empty")
	ErrForbidden     = errors.New("forbidden")
	ErrNotConfigured = errors.New("not configured")
	ErrInvalidKind   = errors.New("invalid kind")
)
