package scene

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeNotFound is returned for an identifier the registry does not
	// hold.
	ErrShapeNotFound = errors.New("shape not found")

	// ErrUnsupportedFormat is returned by Import for a file extension
	// other than .step, .stp, .iges or .igs.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrInvalidDimensions is returned for non-positive or non-finite
	// primitive dimensions.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrInvalidTranslation is returned for a non-finite translation.
	ErrInvalidTranslation = errors.New("invalid translation")

	// ErrInvalidRotation is returned for a rotation with a zero-length or
	// non-finite axis or angle.
	ErrInvalidRotation = errors.New("invalid rotation")
)

// NotFoundError carries the identifier that was looked up.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("shape %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrShapeNotFound
}
