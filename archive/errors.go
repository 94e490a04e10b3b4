package archive

import "errors"

// Sentinel errors returned by the archive package.
var (
	// ErrSealed indicates a write was attempted after the writer was closed.
	ErrSealed = errors.New("archive: writer is sealed")

	// ErrIndexOutOfRange indicates an entry index outside the archive.
	ErrIndexOutOfRange = errors.New("archive: entry index out of range")

	// ErrEntryTooLarge indicates an entry whose decompressed size exceeds
	// the configured read limit.
	ErrEntryTooLarge = errors.New("archive: entry too large")

	// ErrNotFile indicates a read of a directory entry.
	ErrNotFile = errors.New("archive: entry is not a file")
)
