package usecase

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("resource not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
	ErrLockTimeout            = errors.New("lock wait timed out")
	ErrPersistence            = errors.New("persistence failure")
	ErrCacheUnavailable       = errors.New("cache unavailable")
	ErrNotificationProcessing = errors.New("notification processing failed")
)
