package forbidden

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var parenNote = regexp.MustCompile(`\(.*?\)`)

// Load reads a table from path. ".yaml" and ".yml" files use LoadYAML,
// anything else the plain text format.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return LoadYAML(data)
	default:
		return LoadText(f)
	}
}

type yamlTable struct {
	Entries []Entry `yaml:"entries"`
}

// LoadYAML parses a table of the form
//
//	entries:
//	  - word: 가격
//	    replacement: 금액
func LoadYAML(data []byte) (*Table, error) {
	var t yamlTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse forbidden table: %w", err)
	}
	return NewTable(t.Entries), nil
}

// LoadText parses the plain text format: a forbidden word on one line, its
// replacement on the next, and a blank line between pairs. A replacement
// mentioning 삭제 deletes the word, parenthesised notes are dropped, the
// first of several "/" or "," separated options is used, and replacements
// longer than 15 characters are read as commentary and delete the word.
func LoadText(r io.Reader) (*Table, error) {
	var entries []Entry
	current := ""
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			current = ""
			continue
		}
		if current == "" {
			current = line
			continue
		}
		entries = append(entries, Entry{Word: current, Replacement: cleanReplacement(line)})
		current = ""
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read forbidden table: %w", err)
	}
	return NewTable(entries), nil
}

func cleanReplacement(s string) string {
	if strings.Contains(s, "삭제") {
		return ""
	}
	if strings.Contains(s, "(") {
		s = strings.TrimSpace(parenNote.ReplaceAllString(s, ""))
	}
	for _, sep := range []string{"/", ","} {
		if !strings.Contains(s, sep) {
			continue
		}
		for _, opt := range strings.Split(s, sep) {
			opt = strings.TrimSpace(opt)
			if opt != "" && utf8.RuneCountInString(opt) < 10 {
				s = opt
				break
			}
		}
		break
	}
	if utf8.RuneCountInString(s) > 15 {
		return ""
	}
	return s
}
