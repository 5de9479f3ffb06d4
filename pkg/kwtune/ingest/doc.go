package ingest

import (
	"errors"
	"strings"
)

// Doc is one manuscript handed to the engine.
type Doc struct {
	ID      string
	Title   string
	Keyword string
	Body    string
}

// Validate checks if the document has required fields
func (d *Doc) Validate() error {
	if strings.TrimSpace(d.Body) == "" {
		return errors.New("doc body text is required")
	}

	if len(strings.Fields(d.Keyword)) == 0 {
		return errors.New("doc keyword is required")
	}

	return nil
}

// titleSuffixes cut a "# title" line down to its keyword.
var titleSuffixes = []string{"관련해서", "에 대해", "관련", "사용", "후기", "정보"}

// KeywordFromTitle guesses the whole keyword from the first markdown-style
// "# title" line of text, e.g. "# 팔꿈치 쿠션 보호대 관련해서 ..." yields
// "팔꿈치 쿠션 보호대".
func KeywordFromTitle(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		for _, suffix := range titleSuffixes {
			if idx := strings.Index(line, suffix); idx >= 0 {
				line = strings.TrimSpace(line[:idx])
				break
			}
		}
		if line == "" {
			return "", false
		}
		return strings.Join(strings.Fields(line), " "), true
	}
	return "", false
}

// StripTitle removes "# title" lines so they do not take part in counting.
func StripTitle(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
