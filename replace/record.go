package replace

// State is the per-record marker shown in the results listing.
type State int

const (
	Unmarked State = iota
	Selected
	Applied
	Failed
)

func (s State) String() string {
	switch s {
	case Selected:
		return "selected"
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	default:
		return "unmarked"
	}
}

// MatchID identifies a record for its whole lifetime, independent of the
// row it currently occupies in a listing.
type MatchID uint64

// MatchRecord is one search hit.
//
// Column and Len are byte offsets into the line, ColumnInChars and LenInChars
// count runes. They differ as soon as the line holds multi-byte characters.
type MatchRecord struct {
	ID            MatchID
	FileName      string
	LineNumber    int // 1-based
	Column        int
	ColumnInChars int
	Len           int
	LenInChars    int
	Pattern       string   // full line text when the hit was recorded
	Captures      []string // Captures[0] is the whole match
	Regex         bool
	FindWhat      string
	State         State
}

// Capture returns group n, or "" when the search did not capture it.
func (r *MatchRecord) Capture(n int) string {
	if n < 0 || n >= len(r.Captures) {
		return ""
	}
	return r.Captures[n]
}

// MatchedText returns the recorded match, cut from Pattern by characters.
func (r *MatchRecord) MatchedText() string {
	return sliceChars(r.Pattern, r.ColumnInChars, r.LenInChars)
}

// sliceChars cuts length runes starting at rune offset start. Out of range
// requests are clamped, mirroring a substring on a wide string.
func sliceChars(s string, start, length int) string {
	if start < 0 || length <= 0 {
		return ""
	}
	idx := 0
	from, to := -1, len(s)
	for i := range s {
		if idx == start {
			from = i
		}
		if idx == start+length {
			to = i
			break
		}
		idx++
	}
	if from < 0 {
		return ""
	}
	return s[from:to]
}
