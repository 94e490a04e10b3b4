package fonts

import (
	"encoding/binary"
	"fmt"
)

// Composite glyph flags.
const (
	argsAreWords   = 0x0001
	weHaveAScale   = 0x0008
	moreComponents = 0x0020
	weHaveXYScale  = 0x0040
	weHaveTwoByTwo = 0x0080
)

// glyfTables holds the outline tables of a TrueType font.
type glyfTables struct {
	head      []byte
	glyf      []byte
	loca      []byte
	numGlyphs int
	longLoca  bool
}

func readGlyfTables(f *fontFile) (*glyfTables, error) {
	for _, tag := range []string{"head", "maxp", "loca", "glyf"} {
		if !f.hasTable(tag) {
			return nil, fmt.Errorf("%w: missing %s table", ErrUnsupportedFont, tag)
		}
	}
	head, _ := f.table("head")
	maxp, _ := f.table("maxp")
	loca, _ := f.table("loca")
	glyf, _ := f.table("glyf")
	if len(head) < 54 || len(maxp) < 6 {
		return nil, fmt.Errorf("%w: head or maxp truncated", ErrUnsupportedFont)
	}

	t := &glyfTables{
		head:      head,
		glyf:      glyf,
		loca:      loca,
		numGlyphs: int(binary.BigEndian.Uint16(maxp[4:6])),
		longLoca:  int16(binary.BigEndian.Uint16(head[50:52])) == 1,
	}
	need := (t.numGlyphs + 1) * 2
	if t.longLoca {
		need = (t.numGlyphs + 1) * 4
	}
	if len(loca) < need {
		return nil, fmt.Errorf("%w: loca has %d bytes, need %d", ErrUnsupportedFont, len(loca), need)
	}
	return t, nil
}

// glyphRange returns the byte range of gid within glyf. An empty range
// means the glyph has no outline.
func (t *glyfTables) glyphRange(gid int) (start, end uint32) {
	if gid < 0 || gid >= t.numGlyphs {
		return 0, 0
	}
	if t.longLoca {
		start = binary.BigEndian.Uint32(t.loca[gid*4:])
		end = binary.BigEndian.Uint32(t.loca[gid*4+4:])
	} else {
		start = uint32(binary.BigEndian.Uint16(t.loca[gid*2:])) * 2
		end = uint32(binary.BigEndian.Uint16(t.loca[gid*2+2:])) * 2
	}
	if start >= end || end > uint32(len(t.glyf)) {
		return 0, 0
	}
	return start, end
}

// addComponents extends keep with every glyph referenced by a kept
// composite glyph, transitively.
func (t *glyfTables) addComponents(keep glyphSet) {
	queue := keep.sorted()
	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]

		start, end := t.glyphRange(gid)
		if end-start < 10 {
			continue
		}
		if int16(binary.BigEndian.Uint16(t.glyf[start:])) >= 0 {
			continue
		}

		offset := start + 10
		for offset+4 <= end {
			flags := binary.BigEndian.Uint16(t.glyf[offset:])
			component := int(binary.BigEndian.Uint16(t.glyf[offset+2:]))
			if component < t.numGlyphs && !keep[component] {
				keep[component] = true
				queue = append(queue, component)
			}

			offset += 4
			if flags&argsAreWords != 0 {
				offset += 4
			} else {
				offset += 2
			}
			switch {
			case flags&weHaveAScale != 0:
				offset += 2
			case flags&weHaveXYScale != 0:
				offset += 4
			case flags&weHaveTwoByTwo != 0:
				offset += 8
			}
			if flags&moreComponents == 0 {
				break
			}
		}
	}
}

// subset rebuilds glyf and loca keeping glyph ids stable: glyphs outside
// keep become empty. It returns replacement glyf, loca and head tables.
func (t *glyfTables) subset(keep glyphSet) (glyf, loca, head []byte) {
	offsets := make([]uint32, t.numGlyphs+1)
	out := make([]byte, 0, len(t.glyf)/2)
	for gid := 0; gid < t.numGlyphs; gid++ {
		offsets[gid] = uint32(len(out))
		if !keep[gid] {
			continue
		}
		start, end := t.glyphRange(gid)
		out = append(out, t.glyf[start:end]...)
		if len(out)%2 != 0 {
			out = append(out, 0)
		}
	}
	offsets[t.numGlyphs] = uint32(len(out))

	// Short offsets store value/2 and need every offset even, which the
	// padding above guarantees.
	short := offsets[t.numGlyphs]/2 <= 0xFFFF
	if short {
		loca = make([]byte, 2*len(offsets))
		for i, off := range offsets {
			binary.BigEndian.PutUint16(loca[i*2:], uint16(off/2))
		}
	} else {
		loca = make([]byte, 4*len(offsets))
		for i, off := range offsets {
			binary.BigEndian.PutUint32(loca[i*4:], off)
		}
	}

	head = make([]byte, len(t.head))
	copy(head, t.head)
	if short {
		binary.BigEndian.PutUint16(head[50:52], 0)
	} else {
		binary.BigEndian.PutUint16(head[50:52], 1)
	}
	return out, loca, head
}
