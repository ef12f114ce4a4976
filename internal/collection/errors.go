package collection

import "errors"

// Sentinel errors for the failure taxonomy shared across packages.
// Callers match with errors.Is; wrapping preserves operation context.
var (
	// ErrInvalidInput indicates a missing or empty required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsafePath indicates a scan target inside a denied system directory.
	ErrUnsafePath = errors.New("unsafe path")
	// ErrNotFound indicates a referenced collection, image or folder is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate collection path.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable indicates no active cache folders for a required artifact kind.
	ErrUnavailable = errors.New("unavailable")
)
