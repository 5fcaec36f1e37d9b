package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

type ecSection struct {
	glob  string
	props map[string]string
}

// ecFile is one parsed .editorconfig.
type ecFile struct {
	dir      string
	root     bool
	sections []ecSection
}

// CharsetFor walks .editorconfig files from the file's directory upward and
// returns the charset that applies to the file, or "" when none does. The
// nearest file wins and the walk stops at one declaring root = true.
func CharsetFor(filePath string) string {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return ""
	}
	for dir := filepath.Dir(abs); ; {
		if ec, ok := readEditorConfig(filepath.Join(dir, ".editorconfig")); ok {
			if v, found := ec.lookup(abs, "charset"); found {
				return v
			}
			if ec.root {
				return ""
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func readEditorConfig(path string) (*ecFile, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	ec := &ecFile{dir: filepath.Dir(path)}
	var cur *ecSection
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", line[0] == '#', line[0] == ';':
			continue
		case line[0] == '[' && strings.HasSuffix(line, "]"):
			ec.sections = append(ec.sections, ecSection{glob: line[1 : len(line)-1], props: map[string]string{}})
			cur = &ec.sections[len(ec.sections)-1]
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.ToLower(strings.TrimSpace(value))
		if cur == nil {
			ec.root = ec.root || (key == "root" && value == "true")
			continue
		}
		cur.props[key] = value
	}
	return ec, true
}

// lookup returns key from the last section matching path.
func (ec *ecFile) lookup(path, key string) (string, bool) {
	name := filepath.Base(path)
	rel, err := filepath.Rel(ec.dir, path)
	if err != nil {
		rel = name
	}
	rel = filepath.ToSlash(rel)

	var value string
	found := false
	for _, s := range ec.sections {
		target := name
		if strings.Contains(s.glob, "/") {
			target = rel
		}
		if !MatchGlob(strings.TrimPrefix(s.glob, "/"), target) {
			continue
		}
		if v, ok := s.props[key]; ok {
			value, found = v, true
		}
	}
	return value, found
}

// MatchGlob reports whether name matches a shell pattern that may hold
// {a,b} alternatives. File masks and .editorconfig sections share it.
func MatchGlob(pattern, name string) bool {
	for _, p := range expandBraces(pattern) {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// expandBraces turns "*.{js,ts}" into ["*.js", "*.ts"]. Unbalanced braces
// are left alone.
func expandBraces(pattern string) []string {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		return []string{pattern}
	}
	var alts []string
	depth, last := 0, open+1
	for i := open; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			depth++
		case ',':
			if depth == 1 {
				alts = append(alts, pattern[last:i])
				last = i + 1
			}
		case '}':
			depth--
			if depth > 0 {
				continue
			}
			alts = append(alts, pattern[last:i])
			var out []string
			for _, a := range alts {
				out = append(out, expandBraces(pattern[:open]+a+pattern[i+1:])...)
			}
			return out
		}
	}
	return []string{pattern}
}
