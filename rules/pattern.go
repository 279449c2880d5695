package rules

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Flags control how a pattern matches.
type Flags uint8

const (
	// IgnoreCase matches letters case-insensitively (`i`).
	IgnoreCase Flags = 1 << iota
	// Multiline makes ^ and $ match at line boundaries (`m`).
	Multiline
	// DotAll lets . match a newline (`s`).
	DotAll
	// Extended ignores unescaped whitespace and # comments in the pattern (`x`).
	Extended
)

// patternDelimiters are the characters that may open a delimited pattern.
const patternDelimiters = "/#~"

var backrefRegex = regexp2.MustCompile(`\\(?:(\d{1,2})|\\)`, regexp2.None)

func (f Flags) options() regexp2.RegexOptions {
	opts := regexp2.None
	if f&IgnoreCase != 0 {
		opts |= regexp2.IgnoreCase
	}
	if f&Multiline != 0 {
		opts |= regexp2.Multiline
	}
	if f&DotAll != 0 {
		opts |= regexp2.Singleline
	}
	if f&Extended != 0 {
		opts |= regexp2.IgnorePatternWhitespace
	}
	return opts
}

// String returns the flags in delimited-pattern notation.
func (f Flags) String() string {
	var b strings.Builder
	if f&IgnoreCase != 0 {
		b.WriteByte('i')
	}
	if f&Multiline != 0 {
		b.WriteByte('m')
	}
	if f&DotAll != 0 {
		b.WriteByte('s')
	}
	if f&Extended != 0 {
		b.WriteByte('x')
	}
	return b.String()
}

// ParseFlags parses flag letters from `imsxu`. `u` is accepted for compatibility; matching is always Unicode-aware.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, c := range s {
		switch c {
		case 'i':
			f |= IgnoreCase
		case 'm':
			f |= Multiline
		case 's':
			f |= DotAll
		case 'x':
			f |= Extended
		case 'u':
		default:
			return 0, fmt.Errorf("%w: unknown flag %q", ErrPattern, c)
		}
	}
	return f, nil
}

// parsePattern splits a delimited pattern like `/foo/mi` into expression and flags.
// Anything that does not start with a delimiter and close with the same one,
// followed only by flag letters, is a bare expression.
func parsePattern(pattern string) (expr string, flags Flags, delimited bool, err error) {
	if pattern == "" {
		return "", 0, false, fmt.Errorf("%w: empty pattern", ErrPattern)
	}

	delim := pattern[0]
	if !strings.ContainsRune(patternDelimiters, rune(delim)) {
		return pattern, 0, false, nil
	}

	end := strings.LastIndexByte(pattern, delim)
	if end <= 0 {
		return pattern, 0, false, nil
	}

	suffix := pattern[end+1:]
	if strings.Trim(suffix, "imsxu") != "" {
		return pattern, 0, false, nil
	}

	flags, err = ParseFlags(suffix)
	if err != nil {
		return "", 0, false, err
	}

	expr = pattern[1:end]
	if expr == "" {
		return "", 0, false, fmt.Errorf("%w: empty pattern", ErrPattern)
	}
	return expr, flags, true, nil
}

// translateBackrefs rewrites `\1` style back-references to `${1}`. An escaped
// backslash `\\` becomes one literal backslash and never starts a back-reference.
func translateBackrefs(replacement string) string {
	if !strings.Contains(replacement, `\`) {
		return replacement
	}
	out, err := backrefRegex.ReplaceFunc(replacement, func(m regexp2.Match) string {
		if group := m.GroupByNumber(1); group.Length > 0 {
			return "${" + group.String() + "}"
		}
		return `\`
	}, -1, -1)
	if err != nil {
		return replacement
	}
	return out
}
