package minify

// CategoryStats counts the entries and bytes of one category.
type CategoryStats struct {
	Entries  int
	BytesIn  int64
	BytesOut int64
}

// Report summarizes a finished run.
type Report struct {
	Entries  int
	BytesIn  int64
	BytesOut int64
	// Characters is the size of the character set fonts were subset to.
	Characters int
	// Phases lists the phases the run passed through, in order.
	Phases []Phase

	categories [categoryCount]CategoryStats
}

// Category returns the statistics of one category.
func (r *Report) Category(c Category) CategoryStats {
	if c < 0 || c >= categoryCount {
		return CategoryStats{}
	}
	return r.categories[c]
}

// Saved returns the number of uncompressed payload bytes removed.
func (r *Report) Saved() int64 { return r.BytesIn - r.BytesOut }

func (r *Report) add(c Category, in, out int64) {
	r.Entries++
	r.BytesIn += in
	r.BytesOut += out
	s := &r.categories[c]
	s.Entries++
	s.BytesIn += in
	s.BytesOut += out
}
