package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/kwtune/internal/batch"
)

const targetsYAML = `
whole_keyword: 강남 맛집
whole_keyword_count: 1
piece_keywords:
  강남: 1
  맛집: 2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeJSON(t *testing.T) {
	out, _, err := run(t, "강남 맛집 좋아요. 여기 강남 맛집 추천해요.", "analyze", "--keyword", "강남 맛집", "--json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var got struct {
		Keyword string
		Report  struct {
			WholeCount int `json:"whole_count"`
		}
		Structure json.RawMessage
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Keyword != "강남 맛집" {
		t.Errorf("keyword = %q", got.Keyword)
	}
	if got.Report.WholeCount != 2 {
		t.Errorf("whole count = %d, want 2", got.Report.WholeCount)
	}
	if len(got.Structure) == 0 {
		t.Error("expected structure result")
	}
}

func TestAnalyzeKeywordFromTitle(t *testing.T) {
	out, _, err := run(t, "# 강남 맛집 후기\n강남 맛집 좋아요.", "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Keyword: 강남 맛집") || !strings.Contains(out, "Whole keyword: 1") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestAnalyzeWithoutKeyword(t *testing.T) {
	if _, _, err := run(t, "제목이 없어요.", "analyze"); err == nil {
		t.Error("expected error without keyword")
	}
}

func TestAnalyzeHTMLInput(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "post.html", `<html><body><p>강남 맛집 좋아요.</p></body></html>`)
	out, _, err := run(t, "", "analyze", "--input", page, "--keyword", "강남 맛집")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Whole keyword: 1") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCheckReportsUnmetTargets(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "seo.yaml", targetsYAML)
	out, _, err := run(t, "요즘 맛집 고민이 많아요.", "check", "--config", cfg)
	if !errors.Is(err, errUnmet) {
		t.Fatalf("err = %v, want errUnmet", err)
	}
	if !strings.Contains(out, "whole_keyword") || !strings.Contains(out, "unmet") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCheckRequiresConfig(t *testing.T) {
	if _, _, err := run(t, "강남 맛집", "check"); err == nil {
		t.Error("expected error without --config")
	}
}

func TestOptimizeRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "seo.yaml", targetsYAML)
	db := filepath.Join(dir, "runs.db")
	want := "요즘 맛집 고민이 많아요. 처음엔 강남 맛집 검색부터 시작했어요.\n"

	out, summary, err := run(t, "요즘 맛집 고민이 많아요.", "optimize", "--config", cfg, "--db", db, "--doc-id", "post-1")
	if err != nil {
		t.Fatalf("optimize: %v\n%s", err, summary)
	}
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if !strings.Contains(summary, ": converged after") {
		t.Errorf("summary:\n%s", summary)
	}
	if !strings.Contains(summary, "#강남맛집") {
		t.Errorf("summary missing hashtags:\n%s", summary)
	}

	list, _, err := run(t, "", "history", "--db", db, "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []struct {
		ID        string
		DocID     string
		Converged bool
		Output    string
	}
	if err := json.Unmarshal([]byte(list), &runs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(runs) != 1 || runs[0].DocID != "post-1" || !runs[0].Converged {
		t.Fatalf("runs = %+v", runs)
	}

	shown, _, err := run(t, "", "history", "--db", db, "--show", runs[0].ID)
	if err != nil {
		t.Fatalf("history --show: %v", err)
	}
	if shown != want {
		t.Errorf("shown = %q", shown)
	}
}

func TestOptimizeWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "seo.yaml", targetsYAML)
	input := writeFile(t, dir, "post.txt", "요즘 맛집 고민이 많아요.")
	output := filepath.Join(dir, "out.txt")

	if _, _, err := run(t, "", "optimize", "--config", cfg, "--input", input, "--output", output); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "강남 맛집") {
		t.Errorf("output = %q", data)
	}
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "seo.yaml", targetsYAML)
	items := writeFile(t, dir, "items.jsonl", strings.Join([]string{
		`{"id":"a","text":"요즘 맛집 고민이 많아요."}`,
		`broken`,
		`{"id":"b","text":""}`,
	}, "\n"))

	out, _, err := run(t, "", "batch", "--config", cfg, "--input", items, "--workers", "2")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	var a, b batch.Output
	if err := json.Unmarshal([]byte(lines[0]), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &b); err != nil {
		t.Fatal(err)
	}
	if a.ID != "a" || !a.Converged || a.Error != "" {
		t.Errorf("a = %+v", a)
	}
	if b.ID != "b" || b.Converged || b.Error == "" {
		t.Errorf("b = %+v", b)
	}
}

func TestBatchRequiresInput(t *testing.T) {
	if _, _, err := run(t, "", "batch"); err == nil {
		t.Error("expected error without --input")
	}
}

func TestHistoryRequiresDB(t *testing.T) {
	if _, _, err := run(t, "", "history"); err == nil {
		t.Error("expected error without --db")
	}
}
