package replace

// RowKind tells header rows from match rows in a listing.
type RowKind int

const (
	HeaderRow RowKind = iota
	MatchRow
)

// Row is one line of the results listing. Header rows carry the file name and
// the number of matches still listed under it; match rows carry the record ID.
type Row struct {
	Kind  RowKind
	File  string
	ID    MatchID
	Count int
}

// MatchIndex holds search hits in search order: the records of a file are
// contiguous and sorted by line. Rows are derived from that order on demand,
// so removing records never requires renumbering anything.
type MatchIndex struct {
	records []*MatchRecord
	pos     map[MatchID]int
	nextID  MatchID
}

func NewMatchIndex() *MatchIndex {
	return &MatchIndex{pos: make(map[MatchID]int)}
}

// Add stores a copy of rec under a fresh ID and returns that ID. A record for
// a file that already has a block is inserted into that block by line, so the
// ordering invariant holds whatever order the caller uses.
func (x *MatchIndex) Add(rec MatchRecord) MatchID {
	x.nextID++
	rec.ID = x.nextID
	r := &rec

	at := x.insertionPoint(r)
	if at == len(x.records) {
		x.records = append(x.records, r)
		x.pos[r.ID] = at
		return r.ID
	}
	x.records = append(x.records, nil)
	copy(x.records[at+1:], x.records[at:])
	x.records[at] = r
	x.reindex(at)
	return r.ID
}

func (x *MatchIndex) insertionPoint(r *MatchRecord) int {
	n := len(x.records)
	if n == 0 || x.records[n-1].FileName == r.FileName && !before(r, x.records[n-1]) {
		return n
	}
	last := -1
	for i, cur := range x.records {
		if cur.FileName != r.FileName {
			if last >= 0 {
				break
			}
			continue
		}
		if before(r, cur) {
			return i
		}
		last = i
	}
	if last < 0 {
		return n
	}
	return last + 1
}

func before(a, b *MatchRecord) bool {
	if a.LineNumber != b.LineNumber {
		return a.LineNumber < b.LineNumber
	}
	return a.ColumnInChars < b.ColumnInChars
}

func (x *MatchIndex) reindex(from int) {
	for i := from; i < len(x.records); i++ {
		x.pos[x.records[i].ID] = i
	}
}

func (x *MatchIndex) Len() int { return len(x.records) }

func (x *MatchIndex) Get(id MatchID) (*MatchRecord, bool) {
	i, ok := x.pos[id]
	if !ok {
		return nil, false
	}
	return x.records[i], true
}

// Records returns the records in index order. The slice is a copy; the
// records are shared.
func (x *MatchIndex) Records() []*MatchRecord {
	out := make([]*MatchRecord, len(x.records))
	copy(out, x.records)
	return out
}

// Files returns the distinct file names in index order.
func (x *MatchIndex) Files() []string {
	var files []string
	for i, r := range x.records {
		if i == 0 || x.records[i-1].FileName != r.FileName {
			files = append(files, r.FileName)
		}
	}
	return files
}

func (x *MatchIndex) setState(id MatchID, s State) bool {
	r, ok := x.Get(id)
	if !ok {
		return false
	}
	r.State = s
	return true
}

func (x *MatchIndex) Select(id MatchID) bool   { return x.setState(id, Selected) }
func (x *MatchIndex) Deselect(id MatchID) bool { return x.setState(id, Unmarked) }

// Toggle flips a record between selected and unmarked. A failed record
// becomes selected so it can be retried.
func (x *MatchIndex) Toggle(id MatchID) bool {
	r, ok := x.Get(id)
	if !ok {
		return false
	}
	if r.State == Selected {
		r.State = Unmarked
	} else {
		r.State = Selected
	}
	return true
}

func (x *MatchIndex) SelectAll() {
	for _, r := range x.records {
		r.State = Selected
	}
}

// UnselectAll clears selections but keeps failure flags visible.
func (x *MatchIndex) UnselectAll() {
	for _, r := range x.records {
		if r.State == Selected {
			r.State = Unmarked
		}
	}
}

// SelectedCount returns how many records are marked for replacement.
func (x *MatchIndex) SelectedCount() int {
	n := 0
	for _, r := range x.records {
		if r.State == Selected {
			n++
		}
	}
	return n
}

// Rows renders the index as a listing: a header row per file followed by
// one row per remaining match.
func (x *MatchIndex) Rows() []Row {
	rows := make([]Row, 0, len(x.records)+8)
	header := -1
	for i, r := range x.records {
		if i == 0 || x.records[i-1].FileName != r.FileName {
			rows = append(rows, Row{Kind: HeaderRow, File: r.FileName})
			header = len(rows) - 1
		}
		rows[header].Count++
		rows = append(rows, Row{Kind: MatchRow, File: r.FileName, ID: r.ID})
	}
	return rows
}

// RowOf returns the current listing row of id, or -1.
func (x *MatchIndex) RowOf(id MatchID) int {
	i, ok := x.pos[id]
	if !ok {
		return -1
	}
	row := 0
	for j := 0; j <= i; j++ {
		if j == 0 || x.records[j-1].FileName != x.records[j].FileName {
			row++
		}
	}
	return row + i
}

// CompactResult describes what a Compact call removed.
type CompactResult struct {
	Removed      []MatchID
	RemovedFiles []string // files whose header row went away with their last match
}

// Compact drops applied records, turns remaining selections back into
// unmarked rows and keeps failed rows flagged for the user.
func (x *MatchIndex) Compact() CompactResult {
	var res CompactResult
	kept := x.records[:0]
	lastFile := ""
	fileKept := false
	flush := func() {
		if lastFile != "" && !fileKept {
			res.RemovedFiles = append(res.RemovedFiles, lastFile)
		}
	}
	for _, r := range x.records {
		if r.FileName != lastFile {
			flush()
			lastFile = r.FileName
			fileKept = false
		}
		if r.State == Applied {
			res.Removed = append(res.Removed, r.ID)
			delete(x.pos, r.ID)
			continue
		}
		if r.State == Selected {
			r.State = Unmarked
		}
		fileKept = true
		kept = append(kept, r)
	}
	flush()
	for i := len(kept); i < len(x.records); i++ {
		x.records[i] = nil
	}
	x.records = kept
	x.reindex(0)
	return res
}
