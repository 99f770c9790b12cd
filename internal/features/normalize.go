package features

import (
	"fmt"
	"strings"
	"unicode"
)

// Normalizer selects how a raw label is turned into a lookup token.
type Normalizer string

const (
	// NormalizeFull applies Normalize.
	NormalizeFull Normalizer = "full"
	// NormalizeSlug applies Slug.
	NormalizeSlug Normalizer = "slug"
	// NormalizeNone passes the label through untouched.
	NormalizeNone Normalizer = "none"
)

// ParseNormalizer maps a config value to a Normalizer. Empty means full.
func ParseNormalizer(s string) (Normalizer, error) {
	switch Normalizer(strings.ToLower(strings.TrimSpace(s))) {
	case "", NormalizeFull:
		return NormalizeFull, nil
	case NormalizeSlug:
		return NormalizeSlug, nil
	case NormalizeNone:
		return NormalizeNone, nil
	}
	return "", fmt.Errorf("unknown normalizer %q", s)
}

// Apply runs the selected normalization on label.
func (n Normalizer) Apply(label string) string {
	switch n {
	case NormalizeSlug:
		return Slug(label)
	case NormalizeNone:
		return label
	default:
		return Normalize(label)
	}
}

// Normalize canonicalizes a category label into its training-time token:
// lowercased, digits dropped, the words "hour"/"hours" (and an "of" right
// after them) removed, words joined by underscores.
//
//	Normalize("24 Hours of Le Mans") == "le_mans"
//
// Normalize is total and idempotent. The result may not belong to any universe.
func Normalize(label string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, label)

	words := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	})

	kept := words[:0]
	for i := 0; i < len(words); i++ {
		if isHourWord(words[i]) {
			if i+1 < len(words) && words[i+1] == "of" {
				i++
			}
			continue
		}
		kept = append(kept, words[i])
	}
	return strings.Join(kept, "_")
}

// Slug lowercases label and replaces spaces with underscores. Digits survive,
// so "BR01" stays "br01".
func Slug(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}

// DisplayLabel turns a token back into the label shown to users:
// "spa_francorchamps" -> "Spa Francorchamps".
func DisplayLabel(token string) string {
	words := strings.Fields(strings.ReplaceAll(token, "_", " "))
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func isHourWord(w string) bool {
	return w == "hour" || w == "hours"
}

// titleWord upper-cases the first letter of every alphabetic run, the way
// Python's str.title does ("(honda)" -> "(Honda)").
func titleWord(w string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range w {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
