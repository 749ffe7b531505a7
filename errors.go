package deskpad

import (
	"errors"
	"fmt"
)

// Sentinel errors. Per-object failures are wrapped in *ObjectError so callers
// can match them with errors.Is and still see which object failed.
var (
	// ErrNothingToExport is returned when an export is requested for a canvas
	// without objects. No work is started.
	ErrNothingToExport = errors.New("deskpad: nothing to export")

	// ErrResourceNotFound reports that no original is registered for an id.
	ErrResourceNotFound = errors.New("deskpad: original resource not found")

	// ErrDecode reports image data that could not be rasterized.
	ErrDecode = errors.New("deskpad: image decode failed")

	// ErrClone reports an object that could not be rebuilt for export,
	// neither from its full style nor from its primitive fields.
	ErrClone = errors.New("deskpad: object rebuild failed")

	// ErrInvalidCanvas reports a canvas with non-positive dimensions.
	ErrInvalidCanvas = errors.New("deskpad: invalid canvas dimensions")
)

// ObjectError describes a failure tied to a single canvas object.
type ObjectError struct {
	Kind Kind
	Key  string
	Op   string
	Err  error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("deskpad: %s %s %q: %v", e.Op, e.Kind, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

func objectError(obj Object, op string, err error) *ObjectError {
	return &ObjectError{Kind: obj.Kind(), Key: obj.Key(), Op: op, Err: err}
}
