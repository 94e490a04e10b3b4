package minify

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the minify package.
var (
	// ErrInvalidQuality indicates a JPEG quality outside [1,100).
	ErrInvalidQuality = errors.New("image quality not in range 1-100")

	// ErrInvalidConfig indicates a configuration value that cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMarkupEncoding indicates a markup entry that is not valid UTF-8.
	ErrMarkupEncoding = errors.New("markup is not valid UTF-8")

	// ErrImageEngine indicates the image engine rejected an entry.
	ErrImageEngine = errors.New("image compression failed")

	// ErrFontEngine indicates the font engine rejected an entry.
	ErrFontEngine = errors.New("font subsetting failed")

	// ErrPhaseOrder indicates a pipeline phase transition out of order.
	ErrPhaseOrder = errors.New("pipeline phase out of order")

	// ErrEntryMissing indicates an output archive that does not hold every
	// source entry exactly once.
	ErrEntryMissing = errors.New("output archive is missing source entries")

	// ErrSamePath indicates identical input and output paths.
	ErrSamePath = errors.New("input and output are the same file")
)

// EntryError reports a failure while handling one archive entry.
type EntryError struct {
	Name     string
	Category Category
	Err      error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s entry %q: %v", e.Category, e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
