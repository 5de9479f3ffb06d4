package ingest

import (
	"strings"
	"testing"
)

func TestExtractTextNaverEditor(t *testing.T) {
	page := `<html><head><title>t</title><script>var x = 1;</script></head>
<body><div class="header">메뉴</div>
<div class="se-main-container">
<p class="se-text-paragraph">강남 맛집 찾고 있어요.</p>
<p class="se-text-paragraph">추천 부탁드려요.</p>
<p class="se-text-paragraph"> </p>
<p class="se-text-paragraph">댓글로   알려주세요!</p>
</div></body></html>`

	text, err := ExtractText(strings.NewReader(page), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	want := "강남 맛집 찾고 있어요.\n추천 부탁드려요.\n\n댓글로 알려주세요!"
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
	if strings.Contains(text, "메뉴") {
		t.Fatal("text outside the post body leaked in")
	}
}

func TestExtractTextFallsBackToBodyText(t *testing.T) {
	text, err := ExtractText(strings.NewReader(`<html><body><div>그냥   본문</div></body></html>`), "")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "그냥 본문" {
		t.Fatalf("got %q", text)
	}
}
