// Package fonts reduces OpenType and TrueType fonts to the glyphs needed
// for a set of characters.
//
// Subsetting is sparse: glyph ids are preserved and unused glyphs are left
// with empty outlines, so cmap, hmtx, GSUB, GPOS and kerning data stay valid
// without being rewritten.
package fonts

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/image/font/sfnt"
)

// ErrUnsupportedFont is returned for data that is not a readable sfnt font.
var ErrUnsupportedFont = errors.New("fonts: unsupported font")

// errUnsupportedLayout marks valid fonts whose outline tables cannot be
// rebuilt; those are returned unchanged.
var errUnsupportedLayout = errors.New("fonts: unsupported outline layout")

// dropTables are removed from every subset font.
var dropTables = map[string]bool{
	// A digital signature no longer matches modified data.
	"DSIG": true,
}

type glyphSet map[int]bool

func (s glyphSet) add(gid int) bool {
	if s[gid] {
		return false
	}
	s[gid] = true
	return true
}

func (s glyphSet) sorted() []int {
	out := make([]int, 0, len(s))
	for gid := range s {
		out = append(out, gid)
	}
	sort.Ints(out)
	return out
}

func (s glyphSet) glyphIDs() []uint16 {
	out := make([]uint16, 0, len(s))
	for _, gid := range s.sorted() {
		if gid >= 0 && gid <= 0xFFFF {
			out = append(out, uint16(gid))
		}
	}
	return out
}

// Subsetter subsets font files for a set of UTF-16 code units.
type Subsetter struct{}

// NewSubsetter returns a Subsetter.
func NewSubsetter() *Subsetter {
	return &Subsetter{}
}

// Subset returns font index of data reduced to the glyphs that chars map
// to, plus .notdef, composite components and GSUB closure. The result is a
// single font even when data is a collection. When no reduction is possible
// the original bytes of a single-font file are returned.
func (s *Subsetter) Subset(data []byte, index int, chars []uint16) ([]byte, error) {
	f, err := parseFontFile(data, index)
	if err != nil {
		return nil, err
	}

	keep, err := mapCharacters(data, index, chars)
	if err != nil {
		return nil, err
	}
	keep[0] = true

	if f.hasTable("GSUB") {
		gsub, _ := f.table("GSUB")
		// Without a usable closure a subset could drop glyphs that
		// substitutions produce.
		if err := addGSUBClosure(gsub, keep); err != nil {
			return s.unchanged(f)
		}
	}

	replaced := make(map[string][]byte)
	switch {
	case f.hasTable("glyf"):
		t, err := readGlyfTables(f)
		if err != nil {
			return nil, err
		}
		t.addComponents(keep)
		replaced["glyf"], replaced["loca"], replaced["head"] = t.subset(keep)
	case f.hasTable("CFF "):
		cff, _ := f.table("CFF ")
		out, err := subsetCFF(cff, keep)
		if errors.Is(err, errUnsupportedLayout) {
			return s.unchanged(f)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFont, err)
		}
		replaced["CFF "] = out
	default:
		// CFF2 and bitmap-only fonts
		return s.unchanged(f)
	}

	w := &sfntWriter{version: f.version}
	for _, tag := range f.order {
		if dropTables[tag] {
			continue
		}
		if table, ok := replaced[tag]; ok {
			w.addTable(tag, table)
			continue
		}
		table, _ := f.table(tag)
		w.addTable(tag, table)
	}
	out := w.bytes()
	if len(out) >= len(data) {
		return s.unchanged(f)
	}
	return out, nil
}

// unchanged returns the font as is, extracting it first when it is a
// collection member.
func (s *Subsetter) unchanged(f *fontFile) ([]byte, error) {
	if len(f.data) >= 4 && string(f.data[:4]) != tagTTC {
		return f.data, nil
	}
	w := &sfntWriter{version: f.version}
	for _, tag := range f.order {
		table, _ := f.table(tag)
		w.addTable(tag, table)
	}
	return w.bytes(), nil
}

// mapCharacters resolves code units to glyph ids through the font's cmap.
// Code units the font does not cover are skipped.
func mapCharacters(data []byte, index int, chars []uint16) (glyphSet, error) {
	var (
		font *sfnt.Font
		err  error
	)
	if len(data) >= 4 && string(data[:4]) == tagTTC {
		var coll *sfnt.Collection
		if coll, err = sfnt.ParseCollection(data); err == nil {
			font, err = coll.Font(index)
		}
	} else {
		font, err = sfnt.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFont, err)
	}

	var buf sfnt.Buffer
	keep := make(glyphSet, len(chars))
	for _, c := range chars {
		gid, err := font.GlyphIndex(&buf, rune(c))
		if err != nil || gid == 0 {
			continue
		}
		keep[int(gid)] = true
	}
	return keep, nil
}
