package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

const tagTTC = "ttcf"

// fontFile is the table directory of one font inside an sfnt file. Table
// offsets are absolute within data, which also holds for collection members.
type fontFile struct {
	data    []byte
	version uint32
	tables  map[string]tableEntry
	order   []string
}

type tableEntry struct {
	offset uint32
	length uint32
}

// parseFontFile reads the table directory of font index. Plain sfnt files
// only have index 0; collections ('ttcf') may have more.
func parseFontFile(data []byte, index int) (*fontFile, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: header truncated", ErrUnsupportedFont)
	}
	dirOffset := 0
	if string(data[:4]) == tagTTC {
		numFonts := int(binary.BigEndian.Uint32(data[8:12]))
		if index < 0 || index >= numFonts {
			return nil, fmt.Errorf("%w: font index %d not in collection of %d", ErrUnsupportedFont, index, numFonts)
		}
		at := 12 + 4*index
		if at+4 > len(data) {
			return nil, fmt.Errorf("%w: collection header truncated", ErrUnsupportedFont)
		}
		dirOffset = int(binary.BigEndian.Uint32(data[at : at+4]))
	} else if index != 0 {
		return nil, fmt.Errorf("%w: font index %d in a single-font file", ErrUnsupportedFont, index)
	}

	if dirOffset+12 > len(data) {
		return nil, fmt.Errorf("%w: table directory truncated", ErrUnsupportedFont)
	}
	f := &fontFile{
		data:    data,
		version: binary.BigEndian.Uint32(data[dirOffset : dirOffset+4]),
		tables:  make(map[string]tableEntry),
	}
	numTables := int(binary.BigEndian.Uint16(data[dirOffset+4 : dirOffset+6]))
	offset := dirOffset + 12
	for i := 0; i < numTables; i++ {
		if offset+16 > len(data) {
			return nil, fmt.Errorf("%w: table directory truncated", ErrUnsupportedFont)
		}
		tag := string(data[offset : offset+4])
		entry := tableEntry{
			offset: binary.BigEndian.Uint32(data[offset+8 : offset+12]),
			length: binary.BigEndian.Uint32(data[offset+12 : offset+16]),
		}
		if uint64(entry.offset)+uint64(entry.length) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: table %q out of bounds", ErrUnsupportedFont, tag)
		}
		if _, dup := f.tables[tag]; !dup {
			f.order = append(f.order, tag)
		}
		f.tables[tag] = entry
		offset += 16
	}
	return f, nil
}

func (f *fontFile) hasTable(tag string) bool {
	_, ok := f.tables[tag]
	return ok
}

func (f *fontFile) table(tag string) ([]byte, error) {
	entry, ok := f.tables[tag]
	if !ok {
		return nil, fmt.Errorf("table %s not found", tag)
	}
	return f.data[entry.offset : entry.offset+entry.length], nil
}

// sfntWriter assembles a single-font sfnt file.
type sfntWriter struct {
	version uint32
	tables  []tableData
}

type tableData struct {
	tag  string
	data []byte
}

func (w *sfntWriter) addTable(tag string, data []byte) {
	w.tables = append(w.tables, tableData{tag, data})
}

func (w *sfntWriter) bytes() []byte {
	sort.Slice(w.tables, func(i, j int) bool { return w.tables[i].tag < w.tables[j].tag })

	numTables := len(w.tables)
	entrySelector := 0
	for (1 << (entrySelector + 1)) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16
	rangeShift := numTables*16 - searchRange

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, w.version)
	binary.Write(&buf, binary.BigEndian, uint16(numTables))
	binary.Write(&buf, binary.BigEndian, uint16(searchRange))
	binary.Write(&buf, binary.BigEndian, uint16(entrySelector))
	binary.Write(&buf, binary.BigEndian, uint16(rangeShift))

	offset := 12 + 16*numTables
	headOffset := -1
	for i, t := range w.tables {
		if t.tag == "head" && len(t.data) >= 12 {
			headOffset = offset
			// checksumAdjustment is zero while checksums are computed.
			cp := make([]byte, len(t.data))
			copy(cp, t.data)
			binary.BigEndian.PutUint32(cp[8:12], 0)
			w.tables[i].data = cp
			t.data = cp
		}
		buf.WriteString(t.tag)
		binary.Write(&buf, binary.BigEndian, calcChecksum(t.data))
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		binary.Write(&buf, binary.BigEndian, uint32(len(t.data)))
		offset += pad4(len(t.data))
	}

	for _, t := range w.tables {
		buf.Write(t.data)
		for k := len(t.data); k < pad4(len(t.data)); k++ {
			buf.WriteByte(0)
		}
	}

	out := buf.Bytes()
	if headOffset >= 0 && headOffset+12 <= len(out) {
		binary.BigEndian.PutUint32(out[headOffset+8:], 0xB1B0AFBA-calcChecksum(out))
	}
	return out
}

func pad4(n int) int { return (n + 3) &^ 3 }

func calcChecksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		if i+4 <= len(data) {
			sum += binary.BigEndian.Uint32(data[i : i+4])
		} else {
			var buf [4]byte
			copy(buf[:], data[i:])
			sum += binary.BigEndian.Uint32(buf[:])
		}
	}
	return sum
}
