package analytics

import "strings"

type runeKind int

const (
	kindNone runeKind = iota
	kindHangul
	kindLatin
	kindDigit
	kindPunct
)

// subPunct are the marks whose repeated runs ("^^", "...", "??") count as
// sub-keywords.
const subPunct = ".,!?;:^-~"

func kindOf(r rune) runeKind {
	switch {
	case r >= '가' && r <= '힣':
		return kindHangul
	case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		return kindLatin
	case r >= '0' && r <= '9':
		return kindDigit
	case strings.ContainsRune(subPunct, r):
		return kindPunct
	default:
		return kindNone
	}
}

// Units splits a token into its sub-keyword candidates.
func Units(token string) []string {
	var out []string
	runes := []rune(token)
	for i := 0; i < len(runes); {
		kind := kindOf(runes[i])
		j := i + 1
		for j < len(runes) && kindOf(runes[j]) == kind {
			j++
		}
		if kind != kindNone && (kind == kindDigit || j-i >= 2) {
			out = append(out, string(runes[i:j]))
		}
		i = j
	}
	return out
}
