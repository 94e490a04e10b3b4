// Package optimize recompresses JPEG images. The encoder always subsamples
// chroma at 4:2:0; requests for 4:1:1 subsampling are not honored.
package optimize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// ErrNotJPEG is returned for data that does not start with a JPEG SOI marker.
var ErrNotJPEG = errors.New("optimize: not a JPEG image")

// JPEGOptions controls recompression.
type JPEGOptions struct {
	// Quality is the encoder quality, 1-100.
	Quality int
	// KeepMetadata copies APPn and COM segments (EXIF, ICC, XMP, comments)
	// from the source into the result.
	KeepMetadata bool
	// MaxDimension downscales images whose width or height exceeds it.
	// Zero disables resizing.
	MaxDimension int
}

// JPEGCompressor re-encodes JPEG images. The encoder subsamples chroma at
// 4:2:0.
type JPEGCompressor struct{}

// NewJPEGCompressor returns a JPEGCompressor.
func NewJPEGCompressor() *JPEGCompressor {
	return &JPEGCompressor{}
}

// Compress decodes data and encodes it again with opts. If the result is
// not smaller than data, data is returned unchanged.
func (c *JPEGCompressor) Compress(data []byte, opts JPEGOptions) ([]byte, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, ErrNotJPEG
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return nil, fmt.Errorf("optimize: quality %d out of range 1-100", opts.Quality)
	}

	var segments [][]byte
	if opts.KeepMetadata {
		var err error
		if segments, err = metadataSegments(data); err != nil {
			return nil, err
		}
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("optimize: decode jpeg: %w", err)
	}
	img = downscale(img, opts.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("optimize: encode jpeg: %w", err)
	}
	out := spliceSegments(buf.Bytes(), segments)
	if len(out) >= len(data) {
		return data, nil
	}
	return out, nil
}

// downscale fits img into a limit x limit box, keeping the aspect ratio.
func downscale(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if limit <= 0 || (w <= limit && h <= limit) {
		return img
	}
	targetW, targetH := limit, limit
	if w >= h {
		targetH = h * limit / w
	} else {
		targetW = w * limit / h
	}
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
