package replace

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBuffer struct {
	path     string
	lines    []string
	editor   bool
	modified bool
}

func (b *memBuffer) Path() string { return b.path }

func (b *memBuffer) Line(n int) (string, bool) {
	if n < 0 || n >= len(b.lines) {
		return "", false
	}
	return b.lines[n], true
}

func (b *memBuffer) Replace(line, col, length int, text string) {
	l := b.lines[line]
	b.lines[line] = l[:col] + text + l[col+length:]
	b.modified = true
}

func (b *memBuffer) Modified() bool { return b.modified }
func (b *memBuffer) IsEditor() bool { return b.editor }

type memProvider struct {
	disk     map[string][]string
	editors  map[string]*memBuffer
	readErr  map[string]error
	writeErr map[string]error
	events   []string
}

func newMemProvider() *memProvider {
	return &memProvider{
		disk:     make(map[string][]string),
		editors:  make(map[string]*memBuffer),
		readErr:  make(map[string]error),
		writeErr: make(map[string]error),
	}
}

func (p *memProvider) AcquireBuffer(path string) (Buffer, error) {
	p.events = append(p.events, "acquire "+path)
	if ed, ok := p.editors[path]; ok {
		return ed, nil
	}
	if err := p.readErr[path]; err != nil {
		return nil, err
	}
	lines, ok := p.disk[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return &memBuffer{path: path, lines: append([]string(nil), lines...)}, nil
}

func (p *memProvider) ReleaseBuffer(buf Buffer, persist bool) error {
	p.events = append(p.events, fmt.Sprintf("release %s persist=%v", buf.Path(), persist))
	if !persist {
		return nil
	}
	if err := p.writeErr[buf.Path()]; err != nil {
		return err
	}
	p.disk[buf.Path()] = append([]string(nil), buf.(*memBuffer).lines...)
	return nil
}

// hit records the nth occurrence of find on line (1-based) of lines.
func hit(file string, lines []string, line int, find string, nth int) MatchRecord {
	text := lines[line-1]
	off := 0
	for i := 0; ; i++ {
		j := strings.Index(text[off:], find)
		if j < 0 {
			panic("occurrence not found")
		}
		if i == nth {
			off += j
			break
		}
		off += j + len(find)
	}
	return MatchRecord{
		FileName:      file,
		LineNumber:    line,
		Column:        off,
		ColumnInChars: utf8.RuneCountInString(text[:off]),
		Len:           len(find),
		LenInChars:    utf8.RuneCountInString(find),
		Pattern:       text,
		Captures:      []string{find},
		FindWhat:      find,
		State:         Selected,
	}
}

func TestApplySameLineDrift(t *testing.T) {
	p := newMemProvider()
	lines := []string{"xxxxxabcxxabcxx"}
	p.disk["a.txt"] = lines

	idx := NewMatchIndex()
	first := idx.Add(hit("a.txt", lines, 1, "abc", 0))
	second := idx.Add(hit("a.txt", lines, 1, "abc", 1))

	rec, _ := idx.Get(second)
	require.Equal(t, 10, rec.Column)

	rep := NewEngine(p, nil).Apply(idx, "ABCDE")

	assert.Equal(t, OutcomeApplied, rep.Outcome(first))
	assert.Equal(t, OutcomeApplied, rep.Outcome(second))
	assert.Equal(t, 12, rec.Column)
	assert.Equal(t, 12, rec.ColumnInChars)
	assert.Equal(t, 5, rec.Len)
	assert.Equal(t, "xxxxxABCDExxABCDExx", p.disk["a.txt"][0])
	assert.Equal(t, "xxxxxABCDExxABCDExx", rec.Pattern)
	assert.Equal(t, []string{"a.txt"}, rep.FilesModified)
	assert.Empty(t, rep.Errors)
}

func TestApplyMultiByteColumns(t *testing.T) {
	p := newMemProvider()
	lines := []string{"héllo wörld, wörld!"}
	p.disk["u.txt"] = lines

	idx := NewMatchIndex()
	a := idx.Add(hit("u.txt", lines, 1, "wörld", 0))
	b := idx.Add(hit("u.txt", lines, 1, "wörld", 1))
	recA, _ := idx.Get(a)
	require.Equal(t, 7, recA.Column)
	require.Equal(t, 6, recA.ColumnInChars)

	rep := NewEngine(p, nil).Apply(idx, "ß")

	assert.Equal(t, 2, rep.Applied)
	assert.Equal(t, "héllo ß, ß!", p.disk["u.txt"][0])
	recB, _ := idx.Get(b)
	// "héllo ß, " is 9 runes and 11 bytes
	assert.Equal(t, 11, recB.Column)
	assert.Equal(t, 9, recB.ColumnInChars)
	assert.Equal(t, 2, recB.Len)
	assert.Equal(t, 1, recB.LenInChars)
	assert.Equal(t, "ß", recB.MatchedText())
}

func TestApplyReplacementLandsAtLocation(t *testing.T) {
	p := newMemProvider()
	lines := []string{"foo bar foo", "bar", "foo foo foo"}
	p.disk["f.go"] = lines

	idx := NewMatchIndex()
	ids := []MatchID{
		idx.Add(hit("f.go", lines, 1, "foo", 0)),
		idx.Add(hit("f.go", lines, 1, "foo", 1)),
		idx.Add(hit("f.go", lines, 3, "foo", 0)),
		idx.Add(hit("f.go", lines, 3, "foo", 1)),
		idx.Add(hit("f.go", lines, 3, "foo", 2)),
	}
	idx.Deselect(ids[3])

	rep := NewEngine(p, nil).Apply(idx, "quux")

	for _, id := range ids {
		rec, _ := idx.Get(id)
		line := p.disk["f.go"][rec.LineNumber-1]
		got := line[rec.Column : rec.Column+rec.Len]
		if id == ids[3] {
			assert.Equal(t, OutcomeSkipped, rep.Outcome(id))
			assert.Equal(t, "foo", got, "skipped record must follow the drift")
			continue
		}
		assert.Equal(t, OutcomeApplied, rep.Outcome(id))
		assert.Equal(t, "quux", got)
	}
	assert.Equal(t, []string{"quux bar quux", "bar", "quux foo quux"}, p.disk["f.go"])
	assert.Equal(t, 4, rep.Applied)
	assert.Equal(t, 1, rep.Skipped)
}

func TestApplyRegexBackreferences(t *testing.T) {
	p := newMemProvider()
	lines := []string{"key=value other=thing"}
	p.disk["cfg.ini"] = lines

	idx := NewMatchIndex()
	r1 := hit("cfg.ini", lines, 1, "key=value", 0)
	r1.Regex = true
	r1.Captures = []string{"key=value", "key", "value"}
	r2 := hit("cfg.ini", lines, 1, "other=thing", 0)
	r2.Regex = true
	r2.Captures = []string{"other=thing", "other", "thing"}
	idx.Add(r1)
	idx.Add(r2)

	rep := NewEngine(p, nil).Apply(idx, `\2:\1`)

	assert.Equal(t, 2, rep.Applied)
	assert.Equal(t, "value:key thing:other", p.disk["cfg.ini"][0])
}

func TestApplyEmptyIndexIsNoop(t *testing.T) {
	p := newMemProvider()
	p.disk["a.txt"] = []string{"abc"}

	idx := NewMatchIndex()
	rep := NewEngine(p, nil).Apply(idx, "x")

	assert.Empty(t, p.events)
	assert.Empty(t, rep.Outcomes)
	assert.Equal(t, []string{"abc"}, p.disk["a.txt"])
}

func TestApplyTwiceAfterCompactIsNoop(t *testing.T) {
	p := newMemProvider()
	lines := []string{"abc abc"}
	p.disk["a.txt"] = lines

	idx := NewMatchIndex()
	idx.Add(hit("a.txt", lines, 1, "abc", 0))
	idx.Add(hit("a.txt", lines, 1, "abc", 1))

	engine := NewEngine(p, nil)
	engine.Apply(idx, "x")
	idx.Compact()
	require.Equal(t, 0, idx.Len())

	p.events = nil
	rep := engine.Apply(idx, "x")
	assert.Empty(t, p.events)
	assert.Empty(t, rep.Outcomes)
	assert.Equal(t, []string{"x x"}, p.disk["a.txt"])
}

func TestApplyUnchangedStaysListed(t *testing.T) {
	p := newMemProvider()
	lines := []string{"same here"}
	p.disk["a.txt"] = lines

	idx := NewMatchIndex()
	id := idx.Add(hit("a.txt", lines, 1, "same", 0))

	rep := NewEngine(p, nil).Apply(idx, "same")

	assert.Equal(t, OutcomeUnchanged, rep.Outcome(id))
	assert.Empty(t, p.events, "no buffer is needed for a no-op")
	rec, _ := idx.Get(id)
	assert.NotEqual(t, Applied, rec.State)
	assert.NotEqual(t, Failed, rec.State)

	res := idx.Compact()
	assert.Empty(t, res.Removed)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, Unmarked, rec.State)
}

func TestApplyStaleMatchFailsOnlyThatRecord(t *testing.T) {
	p := newMemProvider()
	lines := []string{"alpha beta", "gamma beta", "beta"}
	ed := &memBuffer{path: "s.txt", lines: append([]string(nil), lines...), editor: true}
	p.editors["s.txt"] = ed

	idx := NewMatchIndex()
	ok1 := idx.Add(hit("s.txt", lines, 1, "beta", 0))
	stale := idx.Add(hit("s.txt", lines, 2, "beta", 0))
	ok2 := idx.Add(hit("s.txt", lines, 3, "beta", 0))

	// out-of-band edit after the search
	ed.lines[1] = "gamma BETA"

	rep := NewEngine(p, nil).Apply(idx, "delta")

	assert.Equal(t, OutcomeApplied, rep.Outcome(ok1))
	assert.Equal(t, OutcomeFailed, rep.Outcome(stale))
	assert.Equal(t, OutcomeApplied, rep.Outcome(ok2))
	assert.Equal(t, []string{"alpha delta", "gamma BETA", "delta"}, ed.lines)

	require.Len(t, rep.Errors, 1)
	var se *StaleMatchError
	require.True(t, errors.As(rep.Errors[0], &se))
	assert.Equal(t, 2, se.Line)
	assert.Equal(t, "beta", se.Want)
	assert.Equal(t, "BETA", se.Got)

	rec, _ := idx.Get(stale)
	assert.Equal(t, Failed, rec.State)
}

func TestApplyStaleWhenLineIsGone(t *testing.T) {
	p := newMemProvider()
	lines := []string{"one", "two target"}
	p.editors["g.txt"] = &memBuffer{path: "g.txt", lines: []string{"one"}, editor: true}

	idx := NewMatchIndex()
	id := idx.Add(hit("g.txt", lines, 2, "target", 0))

	rep := NewEngine(p, nil).Apply(idx, "x")

	assert.Equal(t, OutcomeFailed, rep.Outcome(id))
	var se *StaleMatchError
	require.True(t, errors.As(rep.Errors[0], &se))
	assert.True(t, se.Gone)
}

func TestApplyFinalizesFileBeforeNextFile(t *testing.T) {
	p := newMemProvider()
	a := []string{"one", "x two two"}
	b := []string{"three", "two x two", "two"}
	p.disk["a.txt"] = a
	p.disk["b.txt"] = b

	idx := NewMatchIndex()
	idx.Add(hit("a.txt", a, 2, "two", 0))
	idx.Add(hit("a.txt", a, 2, "two", 1))
	idx.Add(hit("b.txt", b, 2, "two", 0))
	bSecond := idx.Add(hit("b.txt", b, 2, "two", 1))
	idx.Add(hit("b.txt", b, 3, "two", 0))

	rep := NewEngine(p, nil).Apply(idx, "2222")

	assert.Equal(t, []string{
		"acquire a.txt",
		"release a.txt persist=true",
		"acquire b.txt",
		"release b.txt persist=true",
	}, p.events)
	assert.Equal(t, []string{"one", "x 2222 2222"}, p.disk["a.txt"])
	assert.Equal(t, []string{"three", "2222 x 2222", "2222"}, p.disk["b.txt"])

	// b's line 2 drift only counts b's own first replacement
	rec, _ := idx.Get(bSecond)
	assert.Equal(t, 7, rec.Column)
	assert.Equal(t, 5, rep.Applied)
	assert.Equal(t, []string{"a.txt", "b.txt"}, rep.FilesModified)
}

func TestApplyReadFailureFailsWholeFile(t *testing.T) {
	p := newMemProvider()
	a := []string{"foo foo", "foo"}
	b := []string{"foo"}
	p.readErr["a.txt"] = errors.New("permission denied")
	p.disk["b.txt"] = b

	idx := NewMatchIndex()
	a1 := idx.Add(hit("a.txt", a, 1, "foo", 0))
	a2 := idx.Add(hit("a.txt", a, 1, "foo", 1))
	a3 := idx.Add(hit("a.txt", a, 2, "foo", 0))
	b1 := idx.Add(hit("b.txt", b, 1, "foo", 0))

	rep := NewEngine(p, nil).Apply(idx, "bar")

	for _, id := range []MatchID{a1, a2, a3} {
		assert.Equal(t, OutcomeFailed, rep.Outcome(id))
	}
	assert.Equal(t, OutcomeApplied, rep.Outcome(b1))
	assert.Equal(t, []string{"bar"}, p.disk["b.txt"])

	// acquisition is attempted once per file
	assert.Equal(t, []string{
		"acquire a.txt",
		"acquire b.txt",
		"release b.txt persist=true",
	}, p.events)

	require.Len(t, rep.Errors, 1)
	var re *FileReadError
	require.True(t, errors.As(rep.Errors[0], &re))
	assert.Equal(t, "a.txt", re.Path)
}

func TestApplyWriteFailureFailsReplacedRecords(t *testing.T) {
	p := newMemProvider()
	lines := []string{"foo", "foo", "keep"}
	p.disk["w.txt"] = lines
	p.writeErr["w.txt"] = errors.New("read-only file system")

	idx := NewMatchIndex()
	w1 := idx.Add(hit("w.txt", lines, 1, "foo", 0))
	w2 := idx.Add(hit("w.txt", lines, 2, "foo", 0))
	keep := idx.Add(hit("w.txt", lines, 3, "keep", 0))
	idx.Deselect(keep)

	rep := NewEngine(p, nil).Apply(idx, "bar")

	assert.Equal(t, OutcomeFailed, rep.Outcome(w1))
	assert.Equal(t, OutcomeFailed, rep.Outcome(w2))
	assert.Equal(t, OutcomeSkipped, rep.Outcome(keep))
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 0, rep.Applied)
	assert.Empty(t, rep.FilesModified)
	assert.Equal(t, lines, p.disk["w.txt"])

	require.Len(t, rep.Errors, 1)
	var we *FileWriteError
	require.True(t, errors.As(rep.Errors[0], &we))
	assert.Equal(t, "w.txt", we.Path)
}

func TestApplyRetryAfterWriteFailure(t *testing.T) {
	p := newMemProvider()
	lines := []string{"x foo foo y", "keep"}
	p.disk["a.go"] = lines
	p.writeErr["a.go"] = errors.New("disk full")

	idx := NewMatchIndex()
	first := idx.Add(hit("a.go", lines, 1, "foo", 0))
	second := idx.Add(hit("a.go", lines, 1, "foo", 1))

	rep := NewEngine(p, nil).Apply(idx, "quux")
	require.Equal(t, 2, rep.Failed)
	idx.Compact()
	require.Equal(t, 2, idx.Len())

	// rows describe the file as it is on disk again
	rec, _ := idx.Get(second)
	assert.Equal(t, "x foo foo y", rec.Pattern)
	assert.Equal(t, 6, rec.Column)
	assert.Equal(t, 3, rec.Len)
	assert.Equal(t, "foo", rec.MatchedText())

	delete(p.writeErr, "a.go")
	idx.Toggle(first)
	idx.Toggle(second)
	rep = NewEngine(p, nil).Apply(idx, "quux")

	assert.Equal(t, OutcomeApplied, rep.Outcome(first))
	assert.Equal(t, OutcomeApplied, rep.Outcome(second))
	assert.Equal(t, []string{"x quux quux y", "keep"}, p.disk["a.go"])
	assert.Equal(t, []string{"a.go"}, rep.FilesModified)
}

func TestApplyEditorBufferStaysInMemory(t *testing.T) {
	p := newMemProvider()
	lines := []string{"foo"}
	p.disk["e.txt"] = lines
	ed := &memBuffer{path: "e.txt", lines: []string{"foo"}, editor: true}
	p.editors["e.txt"] = ed

	idx := NewMatchIndex()
	id := idx.Add(hit("e.txt", lines, 1, "foo", 0))

	rep := NewEngine(p, nil).Apply(idx, "bar")

	assert.Equal(t, OutcomeApplied, rep.Outcome(id))
	assert.Equal(t, []string{"bar"}, ed.lines)
	assert.Equal(t, []string{"foo"}, p.disk["e.txt"])
	assert.Equal(t, []string{"e.txt"}, rep.EditorsModified)
	assert.Empty(t, rep.FilesModified)
	assert.Contains(t, p.events, "release e.txt persist=false")
}

func TestApplyReportsProgress(t *testing.T) {
	p := newMemProvider()
	lines := []string{"a a a"}
	p.disk["p.txt"] = lines

	idx := NewMatchIndex()
	for i := 0; i < 3; i++ {
		idx.Add(hit("p.txt", lines, 1, "a", i))
	}

	var seen []int
	engine := NewEngine(p, nil)
	engine.Progress = func(done, total int) {
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	}
	engine.Apply(idx, "b")

	assert.Equal(t, []int{1, 2, 3}, seen)
}
