package ingest

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// bodySelectors locate the post body, most specific first. The first two
// match Naver blog editors.
var bodySelectors = []string{
	".se-main-container",
	"#postViewArea",
	"article",
	"main",
	"body",
}

// ExtractText converts a saved blog post page into plain text: lines inside
// a paragraph are joined with newlines and empty blocks become paragraph
// breaks, so Parse sees the same structure the reader did.
func ExtractText(r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return "", err
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return "", err
	}
	doc.Find("script,noscript,style").Remove()

	var root *goquery.Selection
	for _, sel := range bodySelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			root = found
			break
		}
	}
	if root == nil {
		return "", nil
	}

	blocks := root.Find("p,li,h1,h2,h3,h4")
	if blocks.Length() == 0 {
		return collapse(root.Text()), nil
	}

	var paragraphs []string
	var current []string
	blocks.Each(func(_ int, s *goquery.Selection) {
		line := collapse(s.Text())
		if line == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, "\n"))
				current = nil
			}
			return
		}
		current = append(current, line)
	})
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, "\n"))
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
