// Package search finds pattern occurrences in files and records them as
// replace.MatchRecord values, line by line.
package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"sweep/buffer"
	"sweep/config"
	"sweep/replace"
)

// ErrEmptyPattern is returned by New for an empty search text.
var ErrEmptyPattern = errors.New("search: empty pattern")

type Options struct {
	FindWhat    string
	Regex       bool
	MatchCase   bool
	WholeWord   bool
	FileMasks   []string // globs on the base name, {a,b} allowed; empty means all
	ExcludeDirs []string // directory base names never entered
	MaxFileSize int64
	// MatchTimeout bounds a single regular-expression evaluation.
	MatchTimeout time.Duration
}

type Summary struct {
	FilesScanned int
	FilesMatched int
	Matches      int
	Skipped      int // unreadable, binary or oversized files
}

type Searcher struct {
	opts   Options
	re     *regexp2.Regexp
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) (*Searcher, error) {
	if opts.FindWhat == "" {
		return nil, ErrEmptyPattern
	}
	if logger == nil {
		logger = slog.Default()
	}

	expr := opts.FindWhat
	if !opts.Regex {
		expr = regexp2.Escape(expr)
	}
	if opts.WholeWord {
		expr = `\b(?:` + expr + `)\b`
	}
	ro := regexp2.None
	if !opts.MatchCase {
		ro |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(expr, ro)
	if err != nil {
		return nil, fmt.Errorf("search: invalid pattern %q: %w", opts.FindWhat, err)
	}
	if opts.MatchTimeout > 0 {
		re.MatchTimeout = opts.MatchTimeout
	}
	return &Searcher{opts: opts, re: re, logger: logger}, nil
}

// Search scans every root (file or directory) and returns the hits in
// walk order.
func (s *Searcher) Search(ctx context.Context, roots ...string) (*replace.MatchIndex, Summary, error) {
	idx := replace.NewMatchIndex()
	var sum Summary

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return idx, sum, err
		}
		if !info.IsDir() {
			s.scan(root, idx, &sum)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				s.logger.Debug("search: walk error", "path", path, "err", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != root && s.ignoreDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !s.wantFile(d.Name()) {
				return nil
			}
			s.scan(path, idx, &sum)
			return nil
		})
		if err != nil {
			return idx, sum, err
		}
	}

	s.logger.Info("search: done",
		"pattern", s.opts.FindWhat,
		"files", sum.FilesScanned,
		"matched", sum.FilesMatched,
		"matches", sum.Matches,
		"skipped", sum.Skipped)
	return idx, sum, nil
}

func (s *Searcher) ignoreDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ex := range s.opts.ExcludeDirs {
		if name == ex {
			return true
		}
	}
	return false
}

func (s *Searcher) wantFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if len(s.opts.FileMasks) == 0 {
		return true
	}
	for _, mask := range s.opts.FileMasks {
		if config.MatchGlob(mask, name) {
			return true
		}
	}
	return false
}

func (s *Searcher) scan(path string, idx *replace.MatchIndex, sum *Summary) {
	buf, err := buffer.NewBufferFromFile(path, buffer.LoadOptions{
		Charset: config.CharsetFor(path),
		MaxSize: s.opts.MaxFileSize,
	})
	if err != nil {
		s.logger.Debug("search: skip file", "path", path, "err", err)
		sum.Skipped++
		return
	}
	if buf.ReadOnly {
		sum.Skipped++
		return
	}
	sum.FilesScanned++

	found := 0
	for i, line := range buf.Lines {
		hits, err := s.MatchLine(line)
		if err != nil {
			s.logger.Warn("search: match failed", "path", path, "line", i+1, "err", err)
			break
		}
		for _, h := range hits {
			h.FileName = path
			h.LineNumber = i + 1
			idx.Add(h)
			found++
		}
	}
	if found > 0 {
		sum.FilesMatched++
		sum.Matches += found
	}
}

// MatchLine returns the non-empty matches within one line, with FileName and
// LineNumber left for the caller to fill in.
func (s *Searcher) MatchLine(line string) ([]replace.MatchRecord, error) {
	m, err := s.re.FindStringMatch(line)
	if err != nil {
		return nil, err
	}

	var out []replace.MatchRecord
	byteAt := runeOffsets(line)
	for m != nil {
		if m.Length > 0 {
			groups := m.Groups()
			captures := make([]string, len(groups))
			for i, g := range groups {
				captures[i] = g.String()
			}
			start, end := byteAt(m.Index), byteAt(m.Index+m.Length)
			out = append(out, replace.MatchRecord{
				Column:        start,
				ColumnInChars: m.Index,
				Len:           end - start,
				LenInChars:    m.Length,
				Pattern:       line,
				Captures:      captures,
				Regex:         s.opts.Regex,
				FindWhat:      s.opts.FindWhat,
			})
		}
		m, err = s.re.FindNextMatch(m)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// runeOffsets returns a function mapping a rune offset of line to its byte
// offset.
func runeOffsets(line string) func(int) int {
	if utf8.RuneCountInString(line) == len(line) {
		return func(n int) int { return n }
	}
	offsets := make([]int, 0, len(line)+1)
	for i := range line {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(line))
	return func(n int) int {
		if n >= len(offsets) {
			return len(line)
		}
		return offsets[n]
	}
}
