package fonts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

func latin1(extra string) []uint16 {
	chars := make([]uint16, 0, 255+len(extra))
	for i := 0; i < 255; i++ {
		chars = append(chars, uint16(i))
	}
	for _, r := range extra {
		chars = append(chars, uint16(r))
	}
	return chars
}

func glyphSegments(t *testing.T, f *sfnt.Font, r rune) int {
	t.Helper()
	var buf sfnt.Buffer
	gid, err := f.GlyphIndex(&buf, r)
	if err != nil {
		t.Fatalf("GlyphIndex(%q): %v", r, err)
	}
	if gid == 0 {
		t.Fatalf("rune %q not mapped", r)
	}
	segs, err := f.LoadGlyph(&buf, gid, fixed.I(12), nil)
	if err != nil {
		t.Fatalf("LoadGlyph(%q): %v", r, err)
	}
	return len(segs)
}

func TestSubsetTrueType(t *testing.T) {
	orig, err := sfnt.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("parse goregular: %v", err)
	}
	const dropped = 'Ж' // CYRILLIC CAPITAL LETTER ZHE
	var buf sfnt.Buffer
	if gid, _ := orig.GlyphIndex(&buf, dropped); gid == 0 {
		t.Skip("font does not cover test rune")
	}

	out, err := NewSubsetter().Subset(goregular.TTF, 0, latin1("Hi"))
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if len(out) >= len(goregular.TTF) {
		t.Errorf("subset size %d is not smaller than original %d", len(out), len(goregular.TTF))
	}

	f, err := sfnt.Parse(out)
	if err != nil {
		t.Fatalf("subset font does not parse: %v", err)
	}
	if f.NumGlyphs() != orig.NumGlyphs() {
		t.Errorf("NumGlyphs = %d, want %d (ids must be stable)", f.NumGlyphs(), orig.NumGlyphs())
	}
	for _, r := range "Hié" {
		if n := glyphSegments(t, f, r); n == 0 {
			t.Errorf("glyph %q lost its outline", r)
		}
	}
	if n := glyphSegments(t, f, dropped); n != 0 {
		t.Errorf("glyph %q kept %d segments, want none", dropped, n)
	}

	if sum := calcChecksum(out); sum != 0xB1B0AFBA {
		t.Errorf("file checksum = %#x, want 0xB1B0AFBA", sum)
	}
}

func TestSubsetKeepsRequestedNonLatinGlyph(t *testing.T) {
	const extra = 'Ж'
	out, err := NewSubsetter().Subset(goregular.TTF, 0, latin1(string(extra)))
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	f, err := sfnt.Parse(out)
	if err != nil {
		t.Fatalf("subset font does not parse: %v", err)
	}
	var buf sfnt.Buffer
	if gid, _ := f.GlyphIndex(&buf, extra); gid == 0 {
		t.Skip("font does not cover test rune")
	}
	if n := glyphSegments(t, f, extra); n == 0 {
		t.Errorf("requested glyph %q was emptied", extra)
	}
}

func TestSubsetRejectsInvalidInput(t *testing.T) {
	s := NewSubsetter()
	if _, err := s.Subset([]byte("definitely not a font"), 0, latin1("")); !errors.Is(err, ErrUnsupportedFont) {
		t.Errorf("garbage err = %v, want ErrUnsupportedFont", err)
	}
	if _, err := s.Subset(goregular.TTF, 1, latin1("")); !errors.Is(err, ErrUnsupportedFont) {
		t.Errorf("index 1 of single font err = %v, want ErrUnsupportedFont", err)
	}
}

func TestSubsetCollectionMember(t *testing.T) {
	// A one-member collection whose table offsets point into the
	// original font data appended after the header.
	const hdr = 16
	ttc := make([]byte, hdr)
	copy(ttc, tagTTC)
	binary.BigEndian.PutUint32(ttc[4:], 0x00010000)
	binary.BigEndian.PutUint32(ttc[8:], 1)
	binary.BigEndian.PutUint32(ttc[12:], hdr)
	font := append([]byte(nil), goregular.TTF...)
	numTables := int(binary.BigEndian.Uint16(font[4:6]))
	for i := 0; i < numTables; i++ {
		at := 12 + 16*i + 8
		binary.BigEndian.PutUint32(font[at:], binary.BigEndian.Uint32(font[at:])+hdr)
	}
	ttc = append(ttc, font...)

	out, err := NewSubsetter().Subset(ttc, 0, latin1("Hi"))
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if bytes.HasPrefix(out, []byte(tagTTC)) {
		t.Fatalf("subset of a collection member is still a collection")
	}
	f, err := sfnt.Parse(out)
	if err != nil {
		t.Fatalf("subset font does not parse: %v", err)
	}
	if n := glyphSegments(t, f, 'H'); n == 0 {
		t.Errorf("glyph H lost its outline")
	}
}

func TestSfntWriterRoundTrip(t *testing.T) {
	head := make([]byte, 54)
	binary.BigEndian.PutUint32(head[8:], 0xDEADBEEF)
	w := &sfntWriter{version: 0x4F54544F}
	w.addTable("name", []byte("abc"))
	w.addTable("head", head)
	w.addTable("CFF ", []byte{1, 0, 4, 1, 9})
	out := w.bytes()

	f, err := parseFontFile(out, 0)
	if err != nil {
		t.Fatalf("parseFontFile failed: %v", err)
	}
	if f.version != 0x4F54544F {
		t.Errorf("version = %#x, want OTTO", f.version)
	}
	name, err := f.table("name")
	if err != nil || string(name) != "abc" {
		t.Errorf("name table = %q, %v", name, err)
	}
	cff, _ := f.table("CFF ")
	if !bytes.Equal(cff, []byte{1, 0, 4, 1, 9}) {
		t.Errorf("CFF table = %v", cff)
	}
	if calcChecksum(out) != 0xB1B0AFBA {
		t.Errorf("checksum adjustment not applied")
	}
	if head[8] != 0xDE {
		t.Errorf("writer modified caller's head table")
	}
}
