package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/gdamore/tcell/v2"
)

// cacheLimit caps the number of cached lines before the cache is dropped.
const cacheLimit = 4096

type Token struct {
	Text  string
	Style tcell.Style
}

type span struct {
	text string
	typ  chroma.TokenType
}

// Highlighter tokenises single lines of result snippets. Lines are lexed in
// isolation, so constructs spanning lines (block comments, heredocs) may be
// coloured as plain text.
type Highlighter struct {
	cache map[string][]span
}

func New() *Highlighter {
	return &Highlighter{cache: make(map[string][]span)}
}

func (h *Highlighter) InvalidateCache() {
	h.cache = make(map[string][]span)
}

// Line returns the tokens of text as lexed for lang, styled on top of base.
// Concatenating the token texts gives back text.
func (h *Highlighter) Line(lang, text string, base tcell.Style) []Token {
	key := lang + "\x00" + text
	spans, ok := h.cache[key]
	if !ok {
		spans = tokenise(lang, text)
		if len(h.cache) >= cacheLimit {
			h.cache = make(map[string][]span)
		}
		h.cache[key] = spans
	}

	out := make([]Token, len(spans))
	for i, s := range spans {
		out[i] = Token{Text: s.text, Style: tokenStyle(s.typ, base)}
	}
	return out
}

func tokenise(lang, text string) []span {
	plain := []span{{text: text, typ: chroma.Text}}
	if lang == "" || text == "" {
		return plain
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return plain
	}
	lexer = chroma.Coalesce(lexer)

	iter, err := lexer.Tokenise(nil, text)
	if err != nil {
		return plain
	}
	var spans []span
	for _, tok := range iter.Tokens() {
		v := strings.ReplaceAll(tok.Value, "\n", "")
		if v == "" {
			continue
		}
		spans = append(spans, span{text: v, typ: tok.Type})
	}
	// lexers may drop or rewrite input; never show something else
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.text)
	}
	if sb.String() != text {
		return plain
	}
	return spans
}

// DetectLanguage returns the chroma lexer name for filename, or "".
func DetectLanguage(filename string) string {
	lexer := lexers.Match(filename)
	if lexer == nil {
		return ""
	}
	config := lexer.Config()
	if config == nil {
		return ""
	}
	return config.Name
}

func tokenStyle(t chroma.TokenType, base tcell.Style) tcell.Style {
	switch {
	case t.InCategory(chroma.Keyword):
		return base.Foreground(tcell.ColorBlue).Bold(true)
	case t == chroma.NameBuiltin || t == chroma.NameBuiltinPseudo:
		return base.Foreground(tcell.ColorBlue)
	case t.InSubCategory(chroma.LiteralString):
		return base.Foreground(tcell.ColorGreen)
	case t.InCategory(chroma.Comment):
		return base.Foreground(tcell.ColorGray).Italic(true)
	case t.InSubCategory(chroma.LiteralNumber):
		return base.Foreground(tcell.ColorDarkCyan)
	case t == chroma.NameFunction || t == chroma.NameFunctionMagic:
		return base.Foreground(tcell.ColorYellow)
	case t == chroma.NameClass || t == chroma.NameException || t == chroma.NameDecorator:
		return base.Foreground(tcell.ColorFuchsia)
	default:
		return base
	}
}
