package optimize

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerTEM   = 0x01
	markerRST0  = 0xD0
	markerRST7  = 0xD7
	markerAPP0  = 0xE0
	markerAPP14 = 0xEE
	markerAPP15 = 0xEF
	markerCOM   = 0xFE
)

// metadataSegments returns the APPn and COM segments preceding the first
// scan, markers included, in file order. Adobe APP14 segments are skipped:
// they describe the color transform of the source encoding, which the
// re-encoded image does not share.
func metadataSegments(data []byte) ([][]byte, error) {
	var segments [][]byte
	pos := 2
	for pos < len(data) {
		if data[pos] != 0xFF {
			return nil, fmt.Errorf("optimize: expected marker at offset %d", pos)
		}
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7) {
			continue
		}
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if pos+2 > len(data) {
			return nil, fmt.Errorf("optimize: segment %#x truncated", marker)
		}
		length := int(binary.BigEndian.Uint16(data[pos:]))
		if length < 2 || pos+length > len(data) {
			return nil, fmt.Errorf("optimize: segment %#x has invalid length %d", marker, length)
		}
		body := data[pos : pos+length]
		pos += length

		isApp := marker >= markerAPP0 && marker <= markerAPP15
		if marker == markerAPP14 && bytes.HasPrefix(body[2:], []byte("Adobe")) {
			continue
		}
		if isApp || marker == markerCOM {
			seg := make([]byte, 0, 2+len(body))
			seg = append(seg, 0xFF, marker)
			seg = append(seg, body...)
			segments = append(segments, seg)
		}
	}
	return segments, nil
}

// spliceSegments inserts segments right after the SOI marker of jpg.
func spliceSegments(jpg []byte, segments [][]byte) []byte {
	if len(segments) == 0 {
		return jpg
	}
	size := len(jpg)
	for _, s := range segments {
		size += len(s)
	}
	out := make([]byte, 0, size)
	out = append(out, jpg[:2]...)
	for _, s := range segments {
		out = append(out, s...)
	}
	return append(out, jpg[2:]...)
}
