package replace

import (
	"log/slog"
	"unicode/utf8"
)

// Buffer is the text of one file as seen by the engine. Lines are 0-based,
// columns are byte offsets.
type Buffer interface {
	Path() string
	Line(n int) (string, bool)
	Replace(line, col, length int, text string)
	Modified() bool
	// IsEditor reports whether the buffer belongs to an open editor, in which
	// case it stays in memory after the pass instead of being written.
	IsEditor() bool
}

// BufferProvider hands out buffers for the files being rewritten.
// ReleaseBuffer with persist set writes a temporary buffer back to disk.
type BufferProvider interface {
	AcquireBuffer(path string) (Buffer, error)
	ReleaseBuffer(buf Buffer, persist bool) error
}

// Outcome is what a replace pass did with one record.
type Outcome int

const (
	OutcomeSkipped   Outcome = iota // not selected
	OutcomeUnchanged                // replacement equals the matched text
	OutcomeApplied
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Report summarizes one pass.
type Report struct {
	Outcomes map[MatchID]Outcome
	Errors   []error

	// FilesModified lists files written directly to disk.
	FilesModified []string
	// EditorsModified lists open editors left with unsaved changes.
	EditorsModified []string

	Applied, Failed, Skipped, Unchanged int
}

func newReport() *Report {
	return &Report{Outcomes: make(map[MatchID]Outcome)}
}

func (r *Report) Outcome(id MatchID) Outcome { return r.Outcomes[id] }

func (r *Report) set(rec *MatchRecord, o Outcome) {
	if prev, ok := r.Outcomes[rec.ID]; ok {
		r.count(prev, -1)
	}
	r.Outcomes[rec.ID] = o
	r.count(o, 1)
	switch o {
	case OutcomeApplied:
		rec.State = Applied
	case OutcomeFailed:
		rec.State = Failed
	}
}

func (r *Report) count(o Outcome, n int) {
	switch o {
	case OutcomeApplied:
		r.Applied += n
	case OutcomeFailed:
		r.Failed += n
	case OutcomeUnchanged:
		r.Unchanged += n
	default:
		r.Skipped += n
	}
}

// Engine applies one replacement template to the selected records of a
// MatchIndex. A pass runs synchronously; the engine is not safe for
// concurrent use.
type Engine struct {
	provider BufferProvider
	logger   *slog.Logger

	// Progress, when set, is called once per visited record.
	Progress func(done, total int)
}

func NewEngine(provider BufferProvider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{provider: provider, logger: logger}
}

// position is the part of a record a pass rewrites.
type position struct {
	column, columnInChars int
	length, lengthInChars int
	pattern               string
}

func positionOf(rec *MatchRecord) position {
	return position{rec.Column, rec.ColumnInChars, rec.Len, rec.LenInChars, rec.Pattern}
}

func (p position) restore(rec *MatchRecord) {
	rec.Column, rec.ColumnInChars = p.column, p.columnInChars
	rec.Len, rec.LenInChars = p.length, p.lengthInChars
	rec.Pattern = p.pattern
}

// fileBlock is the contiguous run of records belonging to one file. saved
// holds each record as it was before the pass touched it.
type fileBlock struct {
	path     string
	buf      Buffer
	acquired bool
	records  []*MatchRecord
	saved    []position
	replaced []*MatchRecord
	touched  map[int]bool
}

// Apply runs one pass over idx. Records are rewritten in place: replaced
// ones get their new length and current line snapshot, records on a line
// that was edited get their drifted column. Failures never stop the pass.
func (e *Engine) Apply(idx *MatchIndex, template string) *Report {
	rep := newReport()
	total := len(idx.records)

	var blk *fileBlock
	lastLine := 0
	delta, deltaInChars := 0, 0

	for i, rec := range idx.records {
		if e.Progress != nil {
			e.Progress(i+1, total)
		}

		if blk == nil || rec.FileName != blk.path {
			e.finalize(blk, rep)
			blk = &fileBlock{path: rec.FileName, touched: make(map[int]bool)}
			lastLine = 0
			delta, deltaInChars = 0, 0
		}
		blk.records = append(blk.records, rec)
		blk.saved = append(blk.saved, positionOf(rec))

		if rec.LineNumber == lastLine {
			// earlier replacements on this line moved the hit
			rec.Column += delta
			rec.ColumnInChars += deltaInChars
		} else {
			delta, deltaInChars = 0, 0
			lastLine = rec.LineNumber
		}

		if rec.State != Selected {
			rep.set(rec, OutcomeSkipped)
			continue
		}

		text := Expand(template, rec)
		want := sliceChars(rec.Pattern, rec.ColumnInChars-deltaInChars, rec.LenInChars)
		if text == want {
			rep.set(rec, OutcomeUnchanged)
			continue
		}

		if !blk.acquired {
			blk.acquired = true
			buf, err := e.provider.AcquireBuffer(rec.FileName)
			if err != nil {
				e.logger.Warn("replace: failed to read file", "path", rec.FileName, "err", err)
				rep.Errors = append(rep.Errors, &FileReadError{Path: rec.FileName, Err: err})
			} else {
				blk.buf = buf
			}
		}
		if blk.buf == nil {
			rep.set(rec, OutcomeFailed)
			continue
		}

		line, ok := blk.buf.Line(rec.LineNumber - 1)
		if !ok {
			e.stale(rep, rec, want, "", true)
			continue
		}
		got := byteSlice(line, rec.Column, rec.Len)
		if got != want {
			e.stale(rep, rec, want, got, false)
			continue
		}

		blk.buf.Replace(rec.LineNumber-1, rec.Column, rec.Len, text)

		textLenInChars := utf8.RuneCountInString(text)
		delta += len(text) - rec.Len
		deltaInChars += textLenInChars - rec.LenInChars

		rec.Len = len(text)
		rec.LenInChars = textLenInChars
		if cur, ok := blk.buf.Line(rec.LineNumber - 1); ok {
			rec.Pattern = cur
		}
		blk.touched[rec.LineNumber] = true
		blk.replaced = append(blk.replaced, rec)
	}
	e.finalize(blk, rep)

	e.logger.Info("replace: pass finished",
		"records", total,
		"applied", rep.Applied,
		"failed", rep.Failed,
		"unchanged", rep.Unchanged,
		"files_written", len(rep.FilesModified),
		"editors_modified", len(rep.EditorsModified))
	return rep
}

func (e *Engine) stale(rep *Report, rec *MatchRecord, want, got string, gone bool) {
	err := &StaleMatchError{
		ID:     rec.ID,
		Path:   rec.FileName,
		Line:   rec.LineNumber,
		Column: rec.Column,
		Want:   want,
		Got:    got,
		Gone:   gone,
	}
	e.logger.Debug("replace: stale match", "err", err)
	rep.Errors = append(rep.Errors, err)
	rep.set(rec, OutcomeFailed)
}

// finalize releases the buffer of a finished block and settles the outcome
// of every record replaced in it.
func (e *Engine) finalize(blk *fileBlock, rep *Report) {
	if blk == nil || blk.buf == nil {
		return
	}
	buf := blk.buf
	modified := buf.Modified()
	editor := buf.IsEditor()
	ok := true
	if err := e.provider.ReleaseBuffer(buf, modified && !editor); err != nil {
		if editor {
			e.logger.Warn("replace: release editor buffer", "path", blk.path, "err", err)
		} else {
			ok = false
			e.logger.Error("replace: failed to write file", "path", blk.path, "err", err)
			rep.Errors = append(rep.Errors, &FileWriteError{Path: blk.path, Err: err})
		}
	}

	for i, rec := range blk.records {
		if !ok {
			// the file still holds the old text
			blk.saved[i].restore(rec)
			continue
		}
		if !blk.touched[rec.LineNumber] {
			continue
		}
		if cur, found := buf.Line(rec.LineNumber - 1); found {
			rec.Pattern = cur
		}
	}

	switch {
	case editor && modified:
		rep.EditorsModified = append(rep.EditorsModified, blk.path)
	case !editor && modified && ok:
		rep.FilesModified = append(rep.FilesModified, blk.path)
	}

	for _, rec := range blk.replaced {
		if ok {
			rep.set(rec, OutcomeApplied)
		} else {
			rep.set(rec, OutcomeFailed)
		}
	}
}

func byteSlice(s string, start, length int) string {
	if start < 0 || start > len(s) || length < 0 {
		return ""
	}
	end := start + length
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}
