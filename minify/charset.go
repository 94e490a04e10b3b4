package minify

import (
	"math/bits"
	"unicode/utf16"
)

// latin1Seed is the number of code units every CharSet starts with.
const latin1Seed = 255

// CharSet is a set of UTF-16 code units. A new set holds 0..254 so that
// subset fonts always cover basic Latin-1.
type CharSet struct {
	words [1 << 16 / 64]uint64
	n     int
}

// NewCharSet returns a set seeded with the code units 0..254.
func NewCharSet() *CharSet {
	s := &CharSet{}
	for u := range latin1Seed {
		s.Add(uint16(u))
	}
	return s
}

// Add inserts one code unit.
func (s *CharSet) Add(u uint16) {
	w, b := u/64, uint64(1)<<(u%64)
	if s.words[w]&b == 0 {
		s.words[w] |= b
		s.n++
	}
}

// AddText inserts every UTF-16 code unit of text. Characters outside the
// Basic Multilingual Plane contribute their surrogate halves.
func (s *CharSet) AddText(text string) {
	for _, r := range text {
		if r < 0x10000 {
			s.Add(uint16(r))
			continue
		}
		hi, lo := utf16.EncodeRune(r)
		s.Add(uint16(hi))
		s.Add(uint16(lo))
	}
}

// Has reports whether u is in the set.
func (s *CharSet) Has(u uint16) bool {
	return s.words[u/64]&(1<<(u%64)) != 0
}

// Len returns the number of code units in the set.
func (s *CharSet) Len() int { return s.n }

// Units returns the code units in ascending order.
func (s *CharSet) Units() []uint16 {
	out := make([]uint16, 0, s.n)
	for i, w := range s.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, uint16(i*64+tz))
			w &^= 1 << tz
		}
	}
	return out
}
