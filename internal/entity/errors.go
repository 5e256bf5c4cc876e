package entity

import "errors"

var (
	// ErrInvalidInput is returned for a malformed URL, short code, cursor or owner.
	ErrInvalidInput = errors.New("invalid input")
	// ErrShortCodeExists is returned when attempting to create a link with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when a link is unknown, tombstoned or not owned by the caller.
	ErrLinkNotFound = errors.New("link not found")
	// ErrForbidden is returned by stores when a link exists but belongs to another owner.
	// It never leaves the usecase layer.
	ErrForbidden = errors.New("link belongs to another owner")
	// ErrResolveTimeout is returned when resolving a short code exceeds its latency budget.
	ErrResolveTimeout = errors.New("resolve timeout")
	// ErrMaxRetriesExceeded is returned when no free short code was found in the allowed attempts.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
	// ErrStorageUnavailable is returned when the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidData is returned when the store rejects a value itself, e.g. a
	// malformed encoding or a constraint violation. Retrying cannot succeed.
	ErrInvalidData = errors.New("data rejected by storage")
)
