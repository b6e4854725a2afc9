package catalog

import (
	"math"
	"testing"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

func TestIndexQueryRanksByScore(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	n := x.Replace(
		[]contractx.Candidate{
			{ID: 1, Type: contractx.ProductBasic},
			{ID: 2, Type: contractx.ProductCustomizable},
			{ID: 3, Type: contractx.ProductVariant},
		},
		[][]float64{{1, 0}, {0, 1}, {0.9, 0.1}},
	)
	if n != 3 {
		t.Fatalf("Replace() = %d, want 3", n)
	}

	hits := x.Query([]float64{1, 0}, 2, 0)
	if len(hits) != 2 {
		t.Fatalf("Query() returned %d hits, want 2", len(hits))
	}
	if hits[0].ID != 1 || hits[0].Rank != 1 || hits[0].Score != 1 {
		t.Fatalf("unexpected top hit: %#v", hits[0])
	}
	if hits[1].ID != 3 || hits[1].Rank != 2 {
		t.Fatalf("unexpected second hit: %#v", hits[1])
	}
	if want := 1 / (1 + 0.02); math.Abs(hits[1].Score-want) > 1e-9 {
		t.Fatalf("second score = %v, want %v", hits[1].Score, want)
	}
	if hits[1].Type != contractx.ProductVariant {
		t.Fatalf("type must be carried through, got %q", hits[1].Type)
	}
}

func TestIndexQuerySkipsMismatchedDimensions(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	x.Replace(
		[]contractx.Candidate{{ID: 1}, {ID: 2}},
		[][]float64{{1, 0, 0}, {1, 0}},
	)

	hits := x.Query([]float64{1, 0}, 5, 0)
	if len(hits) != 1 || hits[0].ID != 2 {
		t.Fatalf("unexpected hits: %#v", hits)
	}
}

func TestIndexQueryThreshold(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	x.Replace([]contractx.Candidate{{ID: 1}}, [][]float64{{3, 0}})

	if hits := x.Query([]float64{0, 0}, 5, 0.4); len(hits) != 0 {
		t.Fatalf("expected no hits above threshold, got %#v", hits)
	}
	if hits := x.Query([]float64{0, 0}, 5, 0); len(hits) != 1 {
		t.Fatalf("expected 1 hit without threshold, got %d", len(hits))
	}
}

func TestIndexReplaceSwapsWholesale(t *testing.T) {
	t.Parallel()

	x := NewIndex()
	x.Replace([]contractx.Candidate{{ID: 1}, {ID: 2}}, [][]float64{{1}, {2}})
	x.Replace([]contractx.Candidate{{ID: 9}}, [][]float64{{1}})

	if x.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", x.Len())
	}
	if hits := x.Query([]float64{1}, 5, 0); len(hits) != 1 || hits[0].ID != 9 {
		t.Fatalf("unexpected hits: %#v", hits)
	}
}
