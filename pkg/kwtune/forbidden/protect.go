package forbidden

import (
	"context"
	"sort"
	"strings"
)

// maskBase is the first private-use rune used to hide protected phrases.
const maskBase = '\uE000'

type protected struct {
	next    Substituter
	phrases []string
}

// Protected wraps sub so that the given phrases pass through unchanged,
// e.g. a keyword containing a forbidden word.
func Protected(sub Substituter, phrases ...string) Substituter {
	var list []string
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		list = append(list, p)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return len(list[i]) > len(list[j])
	})
	return &protected{next: sub, phrases: list}
}

func (p *protected) Substitute(ctx context.Context, text string) (string, error) {
	masked := text
	for i, phrase := range p.phrases {
		masked = strings.ReplaceAll(masked, phrase, string(maskBase+rune(i)))
	}
	out, err := p.next.Substitute(ctx, masked)
	if err != nil {
		return "", err
	}
	for i, phrase := range p.phrases {
		out = strings.ReplaceAll(out, string(maskBase+rune(i)), phrase)
	}
	return out, nil
}
