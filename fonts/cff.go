package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// DICT operators that hold absolute offsets into the CFF table.
const (
	opCharset     = 15
	opEncoding    = 16
	opCharStrings = 17
	opPrivate     = 18
	opSubrs       = 19
	opROS         = 1230
	opFDArray     = 1236
	opFDSelect    = 1237
)

// endchar is the smallest valid Type 2 charstring.
var emptyCharString = []byte{14}

// cffIndex is a parsed INDEX together with its byte extent in the source.
type cffIndex struct {
	items      [][]byte
	start, end int
}

func readCFFIndex(data []byte, pos int) (cffIndex, error) {
	if pos < 0 || pos+2 > len(data) {
		return cffIndex{}, fmt.Errorf("INDEX at %d out of bounds", pos)
	}
	count := int(binary.BigEndian.Uint16(data[pos:]))
	if count == 0 {
		return cffIndex{start: pos, end: pos + 2}, nil
	}
	if pos+3 > len(data) {
		return cffIndex{}, fmt.Errorf("INDEX at %d truncated", pos)
	}
	offSize := int(data[pos+2])
	if offSize < 1 || offSize > 4 {
		return cffIndex{}, fmt.Errorf("INDEX at %d has offSize %d", pos, offSize)
	}
	offsetsAt := pos + 3
	dataStart := offsetsAt + (count+1)*offSize - 1 // offsets are 1-based
	if dataStart >= len(data) {
		return cffIndex{}, fmt.Errorf("INDEX at %d truncated", pos)
	}

	readOff := func(i int) int {
		var v int
		for _, b := range data[offsetsAt+i*offSize : offsetsAt+(i+1)*offSize] {
			v = v<<8 | int(b)
		}
		return v
	}

	idx := cffIndex{items: make([][]byte, count), start: pos}
	prev := readOff(0)
	if prev != 1 {
		return cffIndex{}, fmt.Errorf("INDEX at %d has first offset %d", pos, prev)
	}
	for i := 0; i < count; i++ {
		next := readOff(i + 1)
		if next < prev || dataStart+next > len(data) {
			return cffIndex{}, fmt.Errorf("INDEX at %d has invalid offsets", pos)
		}
		idx.items[i] = data[dataStart+prev : dataStart+next]
		prev = next
	}
	idx.end = dataStart + prev
	return idx, nil
}

func writeCFFIndex(items [][]byte) []byte {
	if len(items) == 0 {
		return []byte{0, 0}
	}
	total := 1
	for _, it := range items {
		total += len(it)
	}
	offSize := 1
	for limit := 0xFF; total > limit && offSize < 4; limit = limit<<8 | 0xFF {
		offSize++
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(items)))
	buf.WriteByte(byte(offSize))
	putOff := func(v int) {
		for s := offSize - 1; s >= 0; s-- {
			buf.WriteByte(byte(v >> (8 * s)))
		}
	}
	off := 1
	putOff(off)
	for _, it := range items {
		off += len(it)
		putOff(off)
	}
	for _, it := range items {
		buf.Write(it)
	}
	return buf.Bytes()
}

// dictEntry is one operator of a DICT with its operands. raw keeps the
// original operand bytes so untouched entries re-encode byte for byte.
type dictEntry struct {
	op       int
	operands []int
	raw      []byte
}

type cffDict []dictEntry

func parseCFFDict(data []byte) (cffDict, error) {
	var (
		dict     cffDict
		operands []int
		start    int
	)
	for i := 0; i < len(data); {
		b0 := data[i]
		switch {
		case b0 <= 21:
			op := int(b0)
			raw := data[start:i]
			i++
			if b0 == 12 {
				if i >= len(data) {
					return nil, fmt.Errorf("DICT escape truncated")
				}
				op = 1200 + int(data[i])
				i++
			}
			dict = append(dict, dictEntry{op: op, operands: operands, raw: raw})
			operands = nil
			start = i
		case b0 == 28:
			if i+3 > len(data) {
				return nil, fmt.Errorf("DICT operand truncated")
			}
			operands = append(operands, int(int16(binary.BigEndian.Uint16(data[i+1:]))))
			i += 3
		case b0 == 29:
			if i+5 > len(data) {
				return nil, fmt.Errorf("DICT operand truncated")
			}
			operands = append(operands, int(int32(binary.BigEndian.Uint32(data[i+1:]))))
			i += 5
		case b0 == 30:
			// Real numbers only matter as placeholders; their bytes stay in raw.
			i++
			for done := false; !done; i++ {
				if i >= len(data) {
					return nil, fmt.Errorf("DICT real truncated")
				}
				done = data[i]&0x0F == 0x0F || data[i]>>4 == 0x0F
			}
			operands = append(operands, 0)
		case b0 >= 32 && b0 <= 246:
			operands = append(operands, int(b0)-139)
			i++
		case b0 >= 247 && b0 <= 250:
			if i+2 > len(data) {
				return nil, fmt.Errorf("DICT operand truncated")
			}
			operands = append(operands, (int(b0)-247)*256+int(data[i+1])+108)
			i += 2
		case b0 >= 251 && b0 <= 254:
			if i+2 > len(data) {
				return nil, fmt.Errorf("DICT operand truncated")
			}
			operands = append(operands, -(int(b0)-251)*256-int(data[i+1])-108)
			i += 2
		default:
			return nil, fmt.Errorf("DICT has reserved byte %d", b0)
		}
	}
	return dict, nil
}

func (d cffDict) get(op int) ([]int, bool) {
	for _, e := range d {
		if e.op == op {
			return e.operands, true
		}
	}
	return nil, false
}

// set replaces the operands of op. Replaced operands are encoded as 5-byte
// integers so the DICT length does not depend on their values.
func (d cffDict) set(op int, operands ...int) {
	for i := range d {
		if d[i].op == op {
			d[i].operands = operands
			d[i].raw = nil
		}
	}
}

func (d cffDict) encode() []byte {
	var buf bytes.Buffer
	for _, e := range d {
		if e.raw != nil {
			buf.Write(e.raw)
		} else {
			for _, v := range e.operands {
				buf.WriteByte(29)
				binary.Write(&buf, binary.BigEndian, int32(v))
			}
		}
		if e.op >= 1200 {
			buf.WriteByte(12)
			buf.WriteByte(byte(e.op - 1200))
		} else {
			buf.WriteByte(byte(e.op))
		}
	}
	return buf.Bytes()
}

// normalizeOffsets drops the original encoding of every offset operand so
// that encode emits them with a fixed width.
func (d cffDict) normalizeOffsets() {
	for i := range d {
		switch d[i].op {
		case opCharset, opEncoding, opCharStrings, opPrivate, opFDArray, opFDSelect:
			d[i].raw = nil
		}
	}
}

type byteRange struct{ start, end int }

// cffLayout maps offsets of the original table to the rebuilt one. The
// region after the Global Subr INDEX is carried over with the removed
// ranges cut out.
type cffLayout struct {
	restStart int
	size      int
	prefixLen int
	removed   []byteRange
}

func (l *cffLayout) remove(r byteRange) error {
	if r.start < l.restStart || r.end > l.size || r.start > r.end {
		return fmt.Errorf("%w: CFF structure outside the relocatable region", errUnsupportedLayout)
	}
	for _, o := range l.removed {
		if r.start < o.end && o.start < r.end {
			return fmt.Errorf("%w: overlapping CFF structures", errUnsupportedLayout)
		}
	}
	l.removed = append(l.removed, r)
	sort.Slice(l.removed, func(i, j int) bool { return l.removed[i].start < l.removed[j].start })
	return nil
}

// restLen is the length of the carried-over region.
func (l *cffLayout) restLen() int {
	n := l.size - l.restStart
	for _, r := range l.removed {
		n -= r.end - r.start
	}
	return n
}

// relocate returns the new absolute offset of old.
func (l *cffLayout) relocate(old int) (int, error) {
	if old < l.restStart || old > l.size {
		return 0, fmt.Errorf("%w: offset %d outside the relocatable region", errUnsupportedLayout, old)
	}
	shift := 0
	for _, r := range l.removed {
		if old >= r.start && old < r.end {
			return 0, fmt.Errorf("%w: offset %d points into a rebuilt structure", errUnsupportedLayout, old)
		}
		if r.end <= old {
			shift += r.end - r.start
		}
	}
	return l.prefixLen + old - l.restStart - shift, nil
}

// relocatePrivate rewrites a Private operator ([size offset]) in dict. The
// local Subrs INDEX is addressed relative to the Private DICT, so both must
// move by the same distance.
func (l *cffLayout) relocatePrivate(data []byte, dict cffDict) error {
	ops, ok := dict.get(opPrivate)
	if !ok {
		return nil
	}
	if len(ops) != 2 {
		return fmt.Errorf("Private operator has %d operands", len(ops))
	}
	size, off := ops[0], ops[1]
	if off < 0 || size < 0 || off+size > len(data) {
		return fmt.Errorf("Private DICT out of bounds")
	}
	newOff, err := l.relocate(off)
	if err != nil {
		return err
	}
	private, err := parseCFFDict(data[off : off+size])
	if err != nil {
		return fmt.Errorf("parse Private DICT: %w", err)
	}
	if subrs, ok := private.get(opSubrs); ok && len(subrs) == 1 {
		newSubrs, err := l.relocate(off + subrs[0])
		if err != nil {
			return err
		}
		if newSubrs-newOff != subrs[0] {
			return fmt.Errorf("%w: rebuilt structure between Private DICT and its Subrs", errUnsupportedLayout)
		}
	}
	dict.set(opPrivate, size, newOff)
	return nil
}

// subsetCFF replaces the charstrings of glyphs outside keep with an empty
// charstring. Glyph ids, charset, encodings and subroutines are unchanged.
func subsetCFF(data []byte, keep glyphSet) ([]byte, error) {
	if len(data) < 4 || data[0] != 1 {
		return nil, fmt.Errorf("%w: CFF header", errUnsupportedLayout)
	}
	hdrSize := int(data[2])
	names, err := readCFFIndex(data, hdrSize)
	if err != nil {
		return nil, fmt.Errorf("read Name INDEX: %w", err)
	}
	topIdx, err := readCFFIndex(data, names.end)
	if err != nil {
		return nil, fmt.Errorf("read Top DICT INDEX: %w", err)
	}
	if len(topIdx.items) != 1 {
		return nil, fmt.Errorf("%w: %d fonts in CFF table", errUnsupportedLayout, len(topIdx.items))
	}
	strs, err := readCFFIndex(data, topIdx.end)
	if err != nil {
		return nil, fmt.Errorf("read String INDEX: %w", err)
	}
	gsubrs, err := readCFFIndex(data, strs.end)
	if err != nil {
		return nil, fmt.Errorf("read Global Subr INDEX: %w", err)
	}
	top, err := parseCFFDict(topIdx.items[0])
	if err != nil {
		return nil, fmt.Errorf("parse Top DICT: %w", err)
	}

	csOps, ok := top.get(opCharStrings)
	if !ok || len(csOps) != 1 {
		return nil, fmt.Errorf("Top DICT has no CharStrings")
	}
	charStrings, err := readCFFIndex(data, csOps[0])
	if err != nil {
		return nil, fmt.Errorf("read CharStrings INDEX: %w", err)
	}

	layout := &cffLayout{restStart: gsubrs.end, size: len(data)}
	if err := layout.remove(byteRange{charStrings.start, charStrings.end}); err != nil {
		return nil, err
	}

	var fdArray cffIndex
	fdOps, isCID := top.get(opFDArray)
	if isCID {
		if len(fdOps) != 1 {
			return nil, fmt.Errorf("FDArray operator has %d operands", len(fdOps))
		}
		if fdArray, err = readCFFIndex(data, fdOps[0]); err != nil {
			return nil, fmt.Errorf("read FDArray INDEX: %w", err)
		}
		if err := layout.remove(byteRange{fdArray.start, fdArray.end}); err != nil {
			return nil, err
		}
	}

	top.normalizeOffsets()
	newTopIndex := writeCFFIndex([][]byte{top.encode()})
	layout.prefixLen = hdrSize + (names.end - names.start) + len(newTopIndex) +
		(strs.end - strs.start) + (gsubrs.end - gsubrs.start)
	newCharStrings := layout.prefixLen + layout.restLen()

	// charset 0-2 and Encoding 0-1 name predefined tables, not offsets.
	if ops, ok := top.get(opCharset); ok && len(ops) == 1 && ops[0] > 2 {
		off, err := layout.relocate(ops[0])
		if err != nil {
			return nil, err
		}
		top.set(opCharset, off)
	}
	if ops, ok := top.get(opEncoding); ok && len(ops) == 1 && ops[0] > 1 {
		off, err := layout.relocate(ops[0])
		if err != nil {
			return nil, err
		}
		top.set(opEncoding, off)
	}
	if ops, ok := top.get(opFDSelect); ok && len(ops) == 1 {
		off, err := layout.relocate(ops[0])
		if err != nil {
			return nil, err
		}
		top.set(opFDSelect, off)
	}
	if err := layout.relocatePrivate(data, top); err != nil {
		return nil, err
	}
	top.set(opCharStrings, newCharStrings)

	items := make([][]byte, len(charStrings.items))
	for gid, cs := range charStrings.items {
		if keep[gid] {
			items[gid] = cs
		} else {
			items[gid] = emptyCharString
		}
	}
	csIndex := writeCFFIndex(items)

	var fdIndex []byte
	if isCID {
		top.set(opFDArray, newCharStrings+len(csIndex))
		fds := make([][]byte, len(fdArray.items))
		for i, raw := range fdArray.items {
			fd, err := parseCFFDict(raw)
			if err != nil {
				return nil, fmt.Errorf("parse Font DICT %d: %w", i, err)
			}
			fd.normalizeOffsets()
			if err := layout.relocatePrivate(data, fd); err != nil {
				return nil, err
			}
			fds[i] = fd.encode()
		}
		fdIndex = writeCFFIndex(fds)
	}

	encodedTop := writeCFFIndex([][]byte{top.encode()})
	if len(encodedTop) != len(newTopIndex) {
		return nil, fmt.Errorf("Top DICT changed size during relocation")
	}

	out := make([]byte, 0, newCharStrings+len(csIndex)+len(fdIndex))
	out = append(out, data[:hdrSize]...)
	out = append(out, data[names.start:names.end]...)
	out = append(out, encodedTop...)
	out = append(out, data[strs.start:strs.end]...)
	out = append(out, data[gsubrs.start:gsubrs.end]...)
	at := layout.restStart
	for _, r := range layout.removed {
		out = append(out, data[at:r.start]...)
		at = r.end
	}
	out = append(out, data[at:]...)
	out = append(out, csIndex...)
	out = append(out, fdIndex...)
	return out, nil
}
