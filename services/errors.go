package services

import "errors"

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrDeliveryFailed       = errors.New("delivery failed")
	ErrTargetNotFound       = errors.New("target not found")
	ErrInvalidEvent         = errors.New("invalid event")
	// ErrCleanupSkipped - блокировку очистки держит другой узел
	ErrCleanupSkipped = errors.New("cleanup skipped: lock held elsewhere")
)
