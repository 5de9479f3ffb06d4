package ingest

import (
	"reflect"
	"testing"
)

func TestNewTaxonomy(t *testing.T) {
	tax := NewTaxonomy("  강남   맛집 추천 ")
	if tax.Whole != "강남 맛집 추천" {
		t.Fatalf("whole = %q", tax.Whole)
	}
	if !reflect.DeepEqual(tax.Pieces, []string{"강남", "맛집", "추천"}) {
		t.Fatalf("pieces = %v", tax.Pieces)
	}
	if !tax.IsPiece("맛집") || tax.IsPiece("강남 맛집") {
		t.Fatal("IsPiece mismatch")
	}

	ex := tax.Excluded()
	for _, k := range []string{"강남 맛집 추천", "강남", "맛집", "추천"} {
		if _, ok := ex[k]; !ok {
			t.Errorf("%q should be excluded", k)
		}
	}
}

func TestSingleWordTaxonomyHasNoPieces(t *testing.T) {
	tax := NewTaxonomy("갱년기홍조")
	if len(tax.Pieces) != 0 {
		t.Fatalf("single word keyword should have no pieces, got %v", tax.Pieces)
	}
	if got := tax.Keywords(); !reflect.DeepEqual(got, []string{"갱년기홍조"}) {
		t.Fatalf("keywords = %v", got)
	}
}

func TestDuplicatePieces(t *testing.T) {
	tax := NewTaxonomy("맛집 속 맛집")
	if !reflect.DeepEqual(tax.Pieces, []string{"맛집", "속"}) {
		t.Fatalf("pieces = %v", tax.Pieces)
	}
}

func TestMatchPhrase(t *testing.T) {
	words := []string{"강남", "맛집", "추천"}
	tokens := []string{"요즘", "강남", "맛집", "추천을", "받아요"}

	last, ok := MatchPhrase(tokens, 1, words)
	if !ok || last != 3 {
		t.Fatalf("MatchPhrase = %d, %v", last, ok)
	}
	if _, ok := MatchPhrase(tokens, 0, words); ok {
		t.Fatal("should not match at 0")
	}
	if _, ok := MatchPhrase(tokens, 3, words); ok {
		t.Fatal("should not match past the end")
	}
	if _, ok := MatchPhrase([]string{"강남맛집", "추천"}, 0, words); ok {
		t.Fatal("glued words are not the phrase")
	}
}
