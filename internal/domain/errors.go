package domain

import "errors"

// Error kinds surfaced to callers. Use cases wrap these with context so that
// errors.Is can tell them apart.
var (
	// ErrValidation indicates empty or malformed input. It never reaches storage.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream indicates the embedding provider failed or timed out.
	ErrUpstream = errors.New("embedding provider failed")

	// ErrPersistence indicates a storage read or write failed.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound indicates the note does not exist for the requesting owner.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the note was changed by another writer since it was read.
	ErrConflict = errors.New("revision conflict")
)

// Wire names of the error kinds.
const (
	KindValidation  = "ValidationError"
	KindUpstream    = "UpstreamError"
	KindPersistence = "PersistenceError"
	KindNotFound    = "NotFoundError"
	KindConflict    = "ConflictError"
)

// KindOf maps err to its wire kind. Unclassified errors are reported as
// persistence failures since they originate below the use cases.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindPersistence
	}
}
