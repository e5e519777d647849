package vecindex_test

import (
	"errors"
	"testing"

	"github.com/dynamem/dynamem/vecindex"
)

func TestFlat_AddDimensionMismatch(t *testing.T) {
	idx, err := vecindex.NewFlat(3)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	if err := idx.Add([]float32{1, 2, 3}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	err = idx.Add([]float32{1, 2})
	if !errors.Is(err, vecindex.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	// The failed insert must not alter the index.
	if idx.Len() != 1 {
		t.Errorf("Len = %d after failed Add, want 1", idx.Len())
	}
}

func TestFlat_SearchEmpty(t *testing.T) {
	idx, err := vecindex.NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	results, err := idx.Search([]float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestFlat_SearchOrdering(t *testing.T) {
	idx, err := vecindex.NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	// Distances from origin: 5, 1, 2.
	vectors := [][]float32{{3, 4}, {1, 0}, {0, 2}}
	for _, v := range vectors {
		if err := idx.Add(v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	results, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	wantOrder := []int{1, 2, 0}
	if len(results) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(results), len(wantOrder))
	}
	for i, want := range wantOrder {
		if results[i].Position != want {
			t.Errorf("result %d: position = %d, want %d", i, results[i].Position, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distances not non-decreasing at %d: %v then %v",
				i, results[i-1].Distance, results[i].Distance)
		}
	}
}

func TestFlat_SearchTruncatesK(t *testing.T) {
	idx, err := vecindex.NewFlat(1)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	if err := idx.Add([]float32{1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add([]float32{2}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := idx.Search([]float32{0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestFlat_SearchTieBreakByInsertionOrder(t *testing.T) {
	idx, err := vecindex.NewFlat(2)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}

	// Both are distance 1 from the origin.
	if err := idx.Add([]float32{0, 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add([]float32{1, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for trial := 0; trial < 5; trial++ {
		results, err := idx.Search([]float32{0, 0}, 2)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if results[0].Position != 0 || results[1].Position != 1 {
			t.Fatalf("tie not broken by insertion order: got %d then %d",
				results[0].Position, results[1].Position)
		}
	}
}

func TestFlat_SearchQueryDimensionMismatch(t *testing.T) {
	idx, err := vecindex.NewFlat(3)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	if _, err := idx.Search([]float32{1, 2}, 1); !errors.Is(err, vecindex.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}
