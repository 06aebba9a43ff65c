package pagination

const (
	// DefaultLimit is the page size used when a request omits one.
	DefaultLimit = 20
	// MaxLimit caps any single page.
	MaxLimit = 100
	// MaxOffset bounds how deep a client may page.
	MaxOffset = 100000
)

// Params is an offset window over a newest-first listing.
type Params struct {
	Limit  int
	Offset int
}

// NormalizeLimit applies the default and upper bound.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Normalize clamps both fields into their allowed ranges.
func (p Params) Normalize() Params {
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > MaxOffset {
		offset = MaxOffset
	}
	return Params{Limit: NormalizeLimit(p.Limit), Offset: offset}
}
