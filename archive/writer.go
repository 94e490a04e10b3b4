package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// Writer appends entries to a zip archive in a single total order. After
// Close no further entries can be added.
type Writer struct {
	zw      *zip.Writer
	written map[string]struct{}
	count   int
	sealed  bool
}

// NewWriter returns a Writer that deflates fresh entries at the given flate
// level (flate.HuffmanOnly through flate.BestCompression).
func NewWriter(w io.Writer, level int) (*Writer, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("archive: invalid compression level %d", level)
	}
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &Writer{zw: zw, written: make(map[string]struct{})}, nil
}

// Store writes name with the given payload, deflating it.
func (w *Writer) Store(name string, modified time.Time, data []byte) error {
	if w.sealed {
		return ErrSealed
	}
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	fw, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archive: create entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("archive: write entry %s: %w", name, err)
	}
	w.written[name] = struct{}{}
	w.count++
	return nil
}

// Copy writes entry i of src verbatim, keeping its compressed bytes and
// header untouched.
func (w *Writer) Copy(src *Reader, i int) error {
	if w.sealed {
		return ErrSealed
	}
	f, err := src.file(i)
	if err != nil {
		return err
	}
	if err := w.zw.Copy(f); err != nil {
		return fmt.Errorf("archive: copy entry %s: %w", f.Name, err)
	}
	w.written[f.Name] = struct{}{}
	w.count++
	return nil
}

// Written reports whether an entry named name has been appended.
func (w *Writer) Written(name string) bool {
	_, ok := w.written[name]
	return ok
}

// Len returns the number of entries appended so far.
func (w *Writer) Len() int { return w.count }

// Close writes the central directory and seals the writer. It does not
// close the underlying io.Writer.
func (w *Writer) Close() error {
	if w.sealed {
		return ErrSealed
	}
	w.sealed = true
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("archive: finish: %w", err)
	}
	return nil
}
