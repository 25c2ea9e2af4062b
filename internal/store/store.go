package store

// Store persists the final outcome of design searches.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a result doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveResult atomically saves the result of a search, replacing any
	// previous result with the same ID.
	SaveResult(id string, result *Result) error

	// LoadResult retrieves a saved result.
	// Returns ErrNotFound if no result exists for this ID.
	LoadResult(id string) (*Result, error)

	// ListResults returns metadata for all saved results.
	ListResults() ([]ResultInfo, error)

	// DeleteResult removes a saved result.
	// Returns ErrNotFound if no result exists for this ID.
	DeleteResult(id string) error
}

// ErrNotFound is returned when a requested result does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing result.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "result not found: " + e.ID
	}
	return "result not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
