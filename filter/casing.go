package filter

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joeychilson/textfilter/rules"
)

// DefaultThreshold is the upper-case percentage at which LowPercentUp lower-cases text.
const DefaultThreshold = 70

// ErrThreshold is returned for a LowPercentUp threshold outside [0, 100].
var ErrThreshold = errors.New("threshold must be between 0 and 100")

var (
	// DefaultTitleExceptions are minor English words left lower-case inside titles.
	DefaultTitleExceptions = []string{
		"a", "an", "and", "as", "at", "but", "by", "for", "from", "in",
		"nor", "of", "on", "or", "the", "to", "via", "with",
	}

	// DefaultSentenceExceptions keep their casing even when they open a sentence.
	DefaultSentenceExceptions = []string{
		"iPhone", "iPad", "iPod", "iOS", "macOS", "eBay", "e.g.", "i.e.",
	}

	// DefaultLocationParticles are the geographic particles Location keeps lower-case.
	DefaultLocationParticles = []string{
		"am", "an", "auf", "bei", "da", "das", "de", "dei", "del", "della", "delle",
		"der", "des", "di", "do", "dos", "du", "el", "en", "et", "im", "la", "las",
		"le", "les", "los", "of", "on", "sur", "the", "und", "upon", "van", "von",
		"y", "zu", "zum", "zur",
	}
)

// LowPercentUp lower-cases the whole text when at least threshold percent of its
// letters are upper-case. Letters without case count toward the total. Text without
// letters is returned unchanged.
func LowPercentUp(threshold int) Step {
	return func(text string) (string, error) {
		if threshold < 0 || threshold > 100 {
			return text, fmt.Errorf("%w: got %d", ErrThreshold, threshold)
		}

		var upper, letters int
		for _, r := range text {
			if !unicode.IsLetter(r) {
				continue
			}
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if letters == 0 || upper*100 < threshold*letters {
			return text, nil
		}
		return cases.Lower(language.Und).String(text), nil
	}
}

// TitleCase capitalizes the first letter of every word, leaving the rest of each word
// as it is. Exceptions stay untouched unless they open the text.
func TitleCase(exceptions []string) Step {
	return func(text string) (string, error) {
		return guarded(text, "titleCase", exceptions, rules.ProtectOptions{SkipLeading: true}, capitalizeWords)
	}
}

// SentenceCase capitalizes the first letter of the text. Exceptions are never altered.
func SentenceCase(exceptions []string) Step {
	return func(text string) (string, error) {
		return guarded(text, "sentenceCase", exceptions, rules.ProtectOptions{}, capitalizeFirst)
	}
}

// Location normalizes whitespace and title-cases a place name, keeping particles
// such as "am" or "sur" lower-case. Scripts without case pass through.
func Location(particles []string) Step {
	title := TitleCase(particles)
	return func(text string) (string, error) {
		text, err := Whitespace(text)
		if err != nil {
			return text, err
		}
		return title(text)
	}
}

// guarded runs fn between the guard pair protecting words.
func guarded(text, name string, words []string, opts rules.ProtectOptions, fn func(string) string) (string, error) {
	if text == "" {
		return text, nil
	}

	step := func(s string) (string, error) {
		return fn(s), nil
	}
	if len(words) == 0 {
		return step(text)
	}

	pre, post, err := rules.Protect(text, words, opts)
	if err != nil {
		return text, err
	}

	rule, err := rules.NewFunc(name, step, rules.WithPreRule(pre), rules.WithPostRule(post))
	if err != nil {
		return text, err
	}
	return rule.ApplyWithGuards(text)
}

// capitalizeWords title-cases the first rune of the text and of every part following
// whitespace or a hyphen, when that rune is a letter.
func capitalizeWords(text string) string {
	caser := cases.Title(language.Und, cases.NoLower)

	var b strings.Builder
	b.Grow(len(text))

	atStart := true
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || r == '-':
			atStart = true
			b.WriteRune(r)
		case atStart && unicode.IsLetter(r):
			atStart = false
			b.WriteString(caser.String(string(r)))
		default:
			atStart = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// capitalizeFirst title-cases the first letter of the text, looking past leading
// whitespace and opening quotes or brackets.
func capitalizeFirst(text string) string {
	for i, r := range text {
		if unicode.IsSpace(r) || isOpening(r) {
			continue
		}
		if !unicode.IsLetter(r) {
			return text
		}
		size := utf8.RuneLen(r)
		return text[:i] + cases.Title(language.Und, cases.NoLower).String(string(r)) + text[i+size:]
	}
	return text
}

func isOpening(r rune) bool {
	switch r {
	case '"', '\'', '¿', '¡':
		return true
	}
	return unicode.In(r, unicode.Ps, unicode.Pi)
}
