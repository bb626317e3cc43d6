package config

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// gitignoreParser parses a .gitignore file into patterns and converts
// them into doublestar exclude globs for Config.Exclude.
type gitignoreParser struct {
	patterns []gitignorePattern
}

type gitignorePattern struct {
	raw       string
	negate    bool
	directory bool
	absolute  bool

	kind     patternKind
	compiled *regexp.Regexp
	prefix   string
	suffix   string
}

type patternKind int

const (
	kindExact patternKind = iota
	kindPrefix
	kindSuffix
	kindComplex
)

// GitignoreExcludePatterns reads root/.gitignore, if present, and
// returns its patterns rewritten as doublestar exclude globs. A
// missing .gitignore is not an error: it returns a nil slice.
func GitignoreExcludePatterns(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gp := &gitignoreParser{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.addPattern(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return gp.excludeGlobs(), nil
}

func (gp *gitignoreParser) addPattern(line string) {
	p := gitignorePattern{}

	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.absolute = true
		line = line[1:]
	}
	p.raw = line
	p.kind, p.prefix, p.suffix, p.compiled = analyzePattern(line)

	gp.patterns = append(gp.patterns, p)
}

// analyzePattern classifies a glob-ish gitignore pattern so matching
// avoids a regex engine for the common exact/prefix/suffix cases.
func analyzePattern(pattern string) (patternKind, string, string, *regexp.Regexp) {
	if !strings.ContainsAny(pattern, "*?[") {
		return kindExact, pattern, pattern, nil
	}
	if strings.Contains(pattern, "*") && !strings.ContainsAny(pattern, "?[") {
		if strings.HasPrefix(pattern, "*") && !strings.Contains(pattern[1:], "*") {
			return kindSuffix, "", pattern[1:], nil
		}
		if strings.HasSuffix(pattern, "*") && !strings.Contains(pattern[:len(pattern)-1], "*") {
			return kindPrefix, pattern[:len(pattern)-1], "", nil
		}
	}
	compiled, err := regexp.Compile(globToRegex(pattern))
	if err != nil {
		return kindExact, pattern, pattern, nil
	}
	return kindComplex, "", "", compiled
}

func globToRegex(pattern string) string {
	regex := regexp.QuoteMeta(pattern)
	regex = strings.ReplaceAll(regex, `\*`, `.*`)
	regex = strings.ReplaceAll(regex, `\?`, `.`)
	regex = strings.ReplaceAll(regex, `\[`, `[`)
	regex = strings.ReplaceAll(regex, `\]`, `]`)
	return "^" + regex + "$"
}

// shouldIgnore reports whether path (forward-slash, relative to the
// .gitignore's directory) is ignored, respecting negation patterns'
// last-match-wins semantics.
func (gp *gitignoreParser) shouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	ignored := false
	for _, p := range gp.patterns {
		if gp.matches(p, path, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (gp *gitignoreParser) matches(p gitignorePattern, path string, isDir bool) bool {
	if p.directory {
		if isDir {
			return gp.fastMatch(p, path) || strings.HasPrefix(path, p.raw+"/")
		}
		return strings.HasPrefix(path, p.raw+"/") || gp.fastMatch(p, path)
	}
	if p.absolute {
		return gp.fastMatch(p, path)
	}
	if gp.fastMatch(p, path) {
		return true
	}
	parts := strings.Split(path, "/")
	for i := range parts {
		if gp.fastMatch(p, strings.Join(parts[i:], "/")) {
			return true
		}
	}
	return false
}

func (gp *gitignoreParser) fastMatch(p gitignorePattern, path string) bool {
	switch p.kind {
	case kindExact:
		return p.raw == path
	case kindPrefix:
		return strings.HasPrefix(path, p.prefix)
	case kindSuffix:
		return strings.HasSuffix(path, p.suffix)
	case kindComplex:
		return p.compiled.MatchString(path)
	default:
		matched, _ := filepath.Match(p.raw, path)
		return matched
	}
}

// excludeGlobs rewrites every non-negated pattern as a doublestar glob
// suitable for Config.Exclude. Negation patterns are dropped: re-including
// a path that an earlier broader exclude pattern covers needs ordered
// negation semantics doublestar's flat pattern list cannot express.
func (gp *gitignoreParser) excludeGlobs() []string {
	var out []string
	for _, p := range gp.patterns {
		if p.negate {
			continue
		}
		out = append(out, toExcludeGlob(p))
	}
	return out
}

func toExcludeGlob(p gitignorePattern) string {
	if p.directory {
		if p.absolute {
			return p.raw + "/**"
		}
		return "**/" + p.raw + "/**"
	}
	if p.absolute {
		return p.raw
	}
	return "**/" + p.raw
}
