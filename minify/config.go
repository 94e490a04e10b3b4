package minify

import (
	"fmt"

	"github.com/klauspost/compress/flate"
	"github.com/woozymasta/pathrules"

	"github.com/wudi/epubmin/archive"
)

// DefaultJPEGQuality is used when no quality is given.
const DefaultJPEGQuality = 50

// Config is the immutable configuration of a minimization run.
type Config struct {
	// Images recompresses .jpg entries.
	Images bool
	// Fonts subsets .otf entries to the characters used by .xhtml entries.
	Fonts bool
	// XHTML trims leading and trailing whitespace from every line of
	// .xhtml entries.
	XHTML bool

	// JPEGQuality must lie in [1,100).
	JPEGQuality int
	// KeepMetadata carries EXIF, ICC and comment segments into
	// recompressed images.
	KeepMetadata bool
	// MaxImageDimension downscales larger images. Zero disables it.
	MaxImageDimension int

	// CompressionLevel is the flate level of rewritten entries.
	CompressionLevel int
	// MaxEntrySize bounds the decompressed size of entries that are read
	// for transformation. Zero means archive.DefaultMaxEntrySize.
	MaxEntrySize int64

	// Preserve lists path rules for entries that are always copied
	// verbatim, whatever their extension.
	Preserve []pathrules.Rule
	// PreserveOptions controls Preserve matching.
	PreserveOptions pathrules.MatcherOptions
}

// DefaultConfig returns a Config with every transform disabled.
func DefaultConfig() Config {
	return Config{
		JPEGQuality:      DefaultJPEGQuality,
		KeepMetadata:     true,
		CompressionLevel: flate.BestCompression,
		MaxEntrySize:     archive.DefaultMaxEntrySize,
	}
}

// Validate reports the first unusable value in c.
func (c Config) Validate() error {
	if c.JPEGQuality < 1 || c.JPEGQuality >= 100 {
		return fmt.Errorf("%w: %d", ErrInvalidQuality, c.JPEGQuality)
	}
	if c.CompressionLevel < flate.HuffmanOnly || c.CompressionLevel > flate.BestCompression {
		return fmt.Errorf("%w: compression level %d", ErrInvalidConfig, c.CompressionLevel)
	}
	if c.MaxImageDimension < 0 {
		return fmt.Errorf("%w: negative max image dimension %d", ErrInvalidConfig, c.MaxImageDimension)
	}
	if c.MaxEntrySize < 0 {
		return fmt.Errorf("%w: negative max entry size %d", ErrInvalidConfig, c.MaxEntrySize)
	}
	if _, err := newPreserveMatcher(c.Preserve, c.PreserveOptions); err != nil {
		return err
	}
	return nil
}
