package buffer

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultMaxFileSize bounds the files a buffer will load.
const DefaultMaxFileSize = 100 * 1024 * 1024

// Encoding names as reported by Buffer.Encoding.
const (
	EncodingUTF8    = "UTF-8"
	EncodingUTF8BOM = "UTF-8 BOM"
	EncodingUTF16LE = "UTF-16 LE"
	EncodingUTF16BE = "UTF-16 BE"
	EncodingLatin1  = "Latin-1"
)

type Buffer struct {
	Lines        []string
	Path         string
	Dirty        bool
	ReadOnly     bool // binary content, never rewritten
	Language     string
	LineEnding   string // "LF" or "CRLF", detected from file and preserved on save
	Encoding     string
	FinalNewline bool // file ended with a line break
	FileSize     int64
	ModTime      time.Time
	LastSaveTime time.Time
	Undo         *UndoStack

	group         int // undo group for ReplaceAt, 0 when none is open
	savedSnapshot string
}

// LoadOptions tune NewBufferFromFile.
type LoadOptions struct {
	// Charset forces a decoding ("utf-8", "utf-8-bom", "latin1",
	// "utf-16le", "utf-16be"), as found in .editorconfig. Empty means detect.
	Charset string
	MaxSize int64
}

func NewBuffer() *Buffer {
	return &Buffer{
		Lines:        []string{""},
		Undo:         NewUndoStack(),
		LineEnding:   "LF",
		Encoding:     EncodingUTF8,
		FinalNewline: true,
	}
}

func NewBufferFromFile(path string, opts LoadOptions) (*Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("file too large (%d MB), max supported is %d MB",
			info.Size()/(1024*1024), maxSize/(1024*1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	enc := charsetEncoding(opts.Charset)
	if enc == "" {
		enc = detectEncoding(data)
	}

	// Binary file detection: check first 8KB for null bytes.
	// UTF-16 text is full of them, so it is exempt.
	isBinary := false
	if enc != EncodingUTF16LE && enc != EncodingUTF16BE {
		checkLen := len(data)
		if checkLen > 8192 {
			checkLen = 8192
		}
		isBinary = bytes.IndexByte(data[:checkLen], 0) >= 0
	}

	content, err := decode(data, enc)
	if err != nil {
		return nil, fmt.Errorf("decode %s as %s: %w", path, enc, err)
	}

	// Line ending detection: check for CRLF before normalizing
	lineEnding := "LF"
	if strings.Contains(content, "\r\n") {
		lineEnding = "CRLF"
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	finalNewline := strings.HasSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")

	return &Buffer{
		Lines:         lines,
		Path:          path,
		ReadOnly:      isBinary,
		LineEnding:    lineEnding,
		Encoding:      enc,
		FinalNewline:  finalNewline,
		FileSize:      info.Size(),
		ModTime:       info.ModTime(),
		Undo:          NewUndoStack(),
		savedSnapshot: strings.Join(lines, "\n"),
	}, nil
}

func charsetEncoding(charset string) string {
	switch strings.ToLower(charset) {
	case "utf-8":
		return EncodingUTF8
	case "utf-8-bom":
		return EncodingUTF8BOM
	case "latin1":
		return EncodingLatin1
	case "utf-16le":
		return EncodingUTF16LE
	case "utf-16be":
		return EncodingUTF16BE
	}
	return ""
}

// detectEncoding checks BOM and validates UTF-8 to determine file encoding.
func detectEncoding(data []byte) string {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return EncodingUTF8BOM
	}
	if len(data) >= 2 {
		if data[0] == 0xFF && data[1] == 0xFE {
			return EncodingUTF16LE
		}
		if data[0] == 0xFE && data[1] == 0xFF {
			return EncodingUTF16BE
		}
	}
	if utf8.Valid(data) {
		return EncodingUTF8
	}
	return EncodingLatin1
}

func codec(enc string) encoding.Encoding {
	switch enc {
	case EncodingLatin1:
		return charmap.ISO8859_1
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	}
	return nil
}

func decode(data []byte, enc string) (string, error) {
	if enc == EncodingUTF8BOM {
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), nil
	}
	c := codec(enc)
	if c == nil {
		return string(data), nil
	}
	out, err := c.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Text returns the buffer content joined with "\n".
func (b *Buffer) Text() string {
	return strings.Join(b.Lines, "\n")
}

// Line returns line n (0-based).
func (b *Buffer) Line(n int) (string, bool) {
	if n < 0 || n >= len(b.Lines) {
		return "", false
	}
	return b.Lines[n], true
}

// TextAt returns length bytes of line starting at byte col. It fails when the
// range leaves the line.
func (b *Buffer) TextAt(line, col, length int) (string, bool) {
	l, ok := b.Line(line)
	if !ok || col < 0 || length < 0 || col+length > len(l) {
		return "", false
	}
	return l[col : col+length], true
}

// BeginGroup starts recording ReplaceAt calls as one undo step.
func (b *Buffer) BeginGroup() {
	b.group = b.Undo.NewGroup()
}

func (b *Buffer) EndGroup() {
	b.group = 0
}

// ReplaceAt replaces `length` bytes at the given position with `replacement`.
func (b *Buffer) ReplaceAt(line, col, length int, replacement string) bool {
	if line < 0 || line >= len(b.Lines) {
		return false
	}
	l := b.Lines[line]
	if col < 0 || col > len(l) {
		return false
	}
	end := col + length
	if end > len(l) {
		end = len(l)
	}
	oldText := l[col:end]
	b.Lines[line] = l[:col] + replacement + l[end:]
	b.Dirty = true

	pos := Cursor{Line: line, Col: col}
	if b.group != 0 {
		b.Undo.PushGrouped(Operation{Type: OpDelete, Pos: pos, Text: oldText}, b.group)
		b.Undo.PushGrouped(Operation{Type: OpInsert, Pos: pos, Text: replacement}, b.group)
	} else {
		g := b.Undo.NewGroup()
		b.Undo.PushGrouped(Operation{Type: OpDelete, Pos: pos, Text: oldText}, g)
		b.Undo.PushGrouped(Operation{Type: OpInsert, Pos: pos, Text: replacement}, g)
	}
	return true
}

// ApplyUndo reverts the most recent undo group.
func (b *Buffer) ApplyUndo() bool {
	ops, ok := b.Undo.PopUndo()
	if !ok {
		return false
	}
	for _, op := range ops {
		b.applyInverse(op)
	}
	b.RecomputeDirty()
	return true
}

func (b *Buffer) applyInverse(op Operation) {
	line, ok := b.Line(op.Pos.Line)
	if !ok || op.Pos.Col > len(line) {
		return
	}
	switch op.Type {
	case OpInsert:
		end := op.Pos.Col + len(op.Text)
		if end > len(line) {
			end = len(line)
		}
		b.Lines[op.Pos.Line] = line[:op.Pos.Col] + line[end:]
	case OpDelete:
		b.Lines[op.Pos.Line] = line[:op.Pos.Col] + op.Text + line[op.Pos.Col:]
	}
}

// BuildSaveContent serializes the buffer with its original line ending and
// final newline.
func (b *Buffer) BuildSaveContent() string {
	eol := "\n"
	if b.LineEnding == "CRLF" {
		eol = "\r\n"
	}
	content := strings.Join(b.Lines, eol)
	if b.FinalNewline {
		content += eol
	}
	return content
}

// Encode returns the bytes to write for the buffer's encoding.
func (b *Buffer) Encode() ([]byte, error) {
	content := b.BuildSaveContent()
	switch b.Encoding {
	case EncodingUTF8BOM:
		return append([]byte{0xEF, 0xBB, 0xBF}, content...), nil
	}
	c := codec(b.Encoding)
	if c == nil {
		return []byte(content), nil
	}
	out, err := c.NewEncoder().Bytes([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("encode as %s: %w", b.Encoding, err)
	}
	return out, nil
}

// Save writes the buffer to its path.
func (b *Buffer) Save() error {
	if b.Path == "" || b.ReadOnly {
		return nil
	}
	data, err := b.Encode()
	if err != nil {
		return err
	}
	perm := os.FileMode(0644)
	if info, err := os.Stat(b.Path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.WriteFile(b.Path, data, perm); err != nil {
		return err
	}
	b.MarkSaved()
	return nil
}

func (b *Buffer) currentSnapshot() string {
	return strings.Join(b.Lines, "\n")
}

func (b *Buffer) MarkSaved() {
	b.savedSnapshot = b.currentSnapshot()
	b.Dirty = false
	b.LastSaveTime = time.Now()
}

func (b *Buffer) RecomputeDirty() {
	b.Dirty = b.currentSnapshot() != b.savedSnapshot
}
