package minify

import (
	"fmt"

	"github.com/wudi/epubmin/fonts"
	"github.com/wudi/epubmin/optimize"
)

// ImageEngine recompresses one JPEG payload.
type ImageEngine interface {
	Compress(data []byte, opts optimize.JPEGOptions) ([]byte, error)
}

// FontEngine subsets one font payload to the given UTF-16 code units.
// Index selects the face of a font collection.
type FontEngine interface {
	Subset(data []byte, index int, chars []uint16) ([]byte, error)
}

var (
	_ ImageEngine = (*optimize.JPEGCompressor)(nil)
	_ FontEngine  = (*fonts.Subsetter)(nil)
)

func (p *Pipeline) compressImage(name string, data []byte) ([]byte, error) {
	out, err := p.images.Compress(data, optimize.JPEGOptions{
		Quality:      p.cfg.JPEGQuality,
		KeepMetadata: p.cfg.KeepMetadata,
		MaxDimension: p.cfg.MaxImageDimension,
	})
	if err != nil {
		return nil, &EntryError{Name: name, Category: CategoryImage, Err: fmt.Errorf("%w: %w", ErrImageEngine, err)}
	}
	return out, nil
}

func (p *Pipeline) subsetFont(name string, data []byte, chars []uint16) ([]byte, error) {
	out, err := p.fonts.Subset(data, 0, chars)
	if err != nil {
		return nil, &EntryError{Name: name, Category: CategoryFont, Err: fmt.Errorf("%w: %w", ErrFontEngine, err)}
	}
	return out, nil
}
