// Package archive wraps archive/zip with the access pattern the minimizer
// needs: an indexable, re-readable source and a write-once destination.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultMaxEntrySize caps the decompressed size of a single entry read
// through ReadAll. Defaults to 256 MB.
const DefaultMaxEntrySize int64 = 256 * 1024 * 1024

// Entry describes one member of a source archive.
type Entry struct {
	Index    int
	Name     string
	IsFile   bool
	Size     uint64
	Modified time.Time
}

// Reader exposes the entries of a zip archive by position. Entries may be
// opened any number of times and in any order.
//
// A Reader is not safe for concurrent use by multiple goroutines.
type Reader struct {
	zr      *zip.Reader
	closer  io.Closer
	maxSize int64
}

// Open opens the zip archive at path. The caller must call Close.
func Open(path string) (*Reader, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	return &Reader{zr: &zrc.Reader, closer: zrc, maxSize: DefaultMaxEntrySize}, nil
}

// NewReader reads a zip archive from r. The caller owns r.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("archive: read zip: %w", err)
	}
	return &Reader{zr: zr, maxSize: DefaultMaxEntrySize}, nil
}

// SetMaxEntrySize changes the limit enforced by ReadAll. Zero or negative
// values restore DefaultMaxEntrySize.
func (r *Reader) SetMaxEntrySize(n int64) {
	if n <= 0 {
		n = DefaultMaxEntrySize
	}
	r.maxSize = n
}

// Len returns the number of entries, directories included.
func (r *Reader) Len() int { return len(r.zr.File) }

// Entry returns the description of entry i.
func (r *Reader) Entry(i int) (Entry, error) {
	f, err := r.file(i)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Index:    i,
		Name:     f.Name,
		IsFile:   isFile(f.Name),
		Size:     f.UncompressedSize64,
		Modified: f.Modified,
	}, nil
}

// ReadAll returns the decompressed payload of entry i, enforcing the entry
// size limit against both the declared and the actual size.
func (r *Reader) ReadAll(i int) ([]byte, error) {
	f, err := r.file(i)
	if err != nil {
		return nil, err
	}
	if !isFile(f.Name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFile, f.Name)
	}
	if f.UncompressedSize64 > uint64(r.maxSize) {
		return nil, fmt.Errorf("%w: %s declares %d bytes (max %d)", ErrEntryTooLarge, f.Name, f.UncompressedSize64, r.maxSize)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// Read one byte past the limit in case the declared size is forged.
	data, err := io.ReadAll(io.LimitReader(rc, r.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("archive: read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, f.Name, r.maxSize)
	}
	return data, nil
}

// Close releases the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) file(i int) (*zip.File, error) {
	if i < 0 || i >= len(r.zr.File) {
		return nil, fmt.Errorf("%w: %d (entries: %d)", ErrIndexOutOfRange, i, len(r.zr.File))
	}
	return r.zr.File[i], nil
}

// isFile treats names ending in a path separator as directories, the same
// convention zip tools use when no explicit directory attribute is set.
func isFile(name string) bool {
	return !strings.HasSuffix(name, "/") && !strings.HasSuffix(name, `\`)
}
