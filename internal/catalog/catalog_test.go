package catalog

import (
	"errors"
	"math"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

const eps = 1e-6

func item(id string, vec ...float32) domain.CatalogItem {
	return *domain.NewCatalogItem(id, vec, "2024-01-01", "2024-01-01", 0, "https://cdn.example.com/"+id+".jpg")
}

func mustStore(t *testing.T, items ...domain.CatalogItem) *Store {
	t.Helper()

	s, err := NewStore(items)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	return s
}

func TestNewStore_Validation(t *testing.T) {
	tests := []struct {
		name    string
		items   []domain.CatalogItem
		wantErr error
	}{
		{
			name:  "empty catalog is allowed",
			items: nil,
		},
		{
			name:    "empty product id",
			items:   []domain.CatalogItem{item("", 1, 0)},
			wantErr: e.ErrEmptyProductID,
		},
		{
			name:    "empty embedding",
			items:   []domain.CatalogItem{item("A")},
			wantErr: e.ErrVectorEmbeddingEmpty,
		},
		{
			name:    "duplicate id",
			items:   []domain.CatalogItem{item("A", 1, 0), item("A", 0, 1)},
			wantErr: e.ErrDuplicateProduct,
		},
		{
			name:    "dimension mismatch",
			items:   []domain.CatalogItem{item("A", 1, 0), item("B", 0, 1, 0)},
			wantErr: e.ErrDimensionMismatch,
		},
		{
			name:    "non-finite values",
			items:   []domain.CatalogItem{item("A", float32(math.NaN()), 0)},
			wantErr: e.ErrInvalidSnapshot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.items)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("NewStore() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewStore() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStore_GetAndImmutability(t *testing.T) {
	vec := []float32{1, 2}
	s := mustStore(t, item("A", vec...), item("B", 3, 4))

	vec[0] = 100

	got, ok := s.Get("A")
	if !ok {
		t.Fatal("Get(A) not found")
	}
	if got.Embedding[0] != 1 {
		t.Errorf("store embedding changed through caller slice: %v", got.Embedding)
	}
	if _, ok := s.Get("Z"); ok {
		t.Error("Get(Z) found unknown id")
	}
	if s.Len() != 2 || s.Dimension() != 2 {
		t.Errorf("Len() = %d, Dimension() = %d", s.Len(), s.Dimension())
	}
	if s.Items()[0].ProductID != "A" || s.Items()[1].ProductID != "B" {
		t.Errorf("Items() order = %v", s.Items())
	}
}

func TestRanker_SelfSimilarity(t *testing.T) {
	s := mustStore(t,
		item("A", 1, 2, 3),
		item("B", -1, 0.5, 2),
		item("C", 0.3, 0.3, 0.1),
		item("D", 5, -2, 0),
	)
	r := NewRanker(s)

	for _, it := range s.Items() {
		matches, err := r.Rank(it.Embedding, s.Len())
		if err != nil {
			t.Fatalf("Rank(%s) error = %v", it.ProductID, err)
		}

		found := false
		for _, m := range matches {
			if m.ProductID == it.ProductID {
				found = true
				if math.Abs(m.Score-1) > eps {
					t.Errorf("self score of %s = %v, want 1", it.ProductID, m.Score)
				}
			}
		}
		if !found {
			t.Errorf("Rank(%s) does not contain the item itself", it.ProductID)
		}
		if math.Abs(matches[0].Score-1) > eps {
			t.Errorf("top score for %s = %v, want 1", it.ProductID, matches[0].Score)
		}
	}
}

func TestRanker_LengthAndOrder(t *testing.T) {
	s := mustStore(t,
		item("A", 1, 0),
		item("B", 0, 1),
		item("C", 1, 1),
		item("D", -1, 0),
		item("E", 0.5, -1),
	)
	r := NewRanker(s)

	for _, topK := range []int{1, 2, 3, 5, 6, 100} {
		matches, err := r.Rank([]float32{0.7, 0.2}, topK)
		if err != nil {
			t.Fatalf("Rank(topK=%d) error = %v", topK, err)
		}
		if want := min(topK, s.Len()); len(matches) != want {
			t.Errorf("Rank(topK=%d) len = %d, want %d", topK, len(matches), want)
		}
		for i := 1; i < len(matches); i++ {
			if matches[i].Score > matches[i-1].Score {
				t.Errorf("Rank(topK=%d) not sorted at %d: %v", topK, i, matches)
			}
		}
	}
}

func TestRanker_TieBreakByInsertionOrder(t *testing.T) {
	s := mustStore(t, item("A", 1, 0), item("B", 0, 1), item("C", 1, 0))
	r := NewRanker(s)

	matches, err := r.Rank([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(matches) != 2 || matches[0].ProductID != "A" || matches[1].ProductID != "C" {
		t.Fatalf("Rank() = %v, want [A C]", matches)
	}
	for _, m := range matches {
		if math.Abs(m.Score-1) > eps {
			t.Errorf("score of %s = %v, want 1", m.ProductID, m.Score)
		}
	}

	all, err := r.Rank([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if all[2].ProductID != "B" || math.Abs(all[2].Score) > eps {
		t.Errorf("last match = %v, want B with 0", all[2])
	}
}

func TestRanker_EdgeCases(t *testing.T) {
	t.Run("empty catalog", func(t *testing.T) {
		r := NewRanker(mustStore(t))
		matches, err := r.Rank([]float32{1, 0}, 3)
		if err != nil {
			t.Fatalf("Rank() error = %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("Rank() = %v, want empty", matches)
		}
	})

	t.Run("zero-norm query scores zero", func(t *testing.T) {
		r := NewRanker(mustStore(t, item("A", 1, 0), item("B", 0, 1)))
		matches, err := r.Rank([]float32{0, 0}, 2)
		if err != nil {
			t.Fatalf("Rank() error = %v", err)
		}
		for _, m := range matches {
			if m.Score != 0 {
				t.Errorf("score of %s = %v, want 0", m.ProductID, m.Score)
			}
		}
		if matches[0].ProductID != "A" {
			t.Errorf("tie order = %v, want A first", matches)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		r := NewRanker(mustStore(t, item("A", 1, 0)))
		if _, err := r.Rank([]float32{1, 0, 0}, 1); !errors.Is(err, e.ErrDimensionMismatch) {
			t.Errorf("Rank() error = %v, want %v", err, e.ErrDimensionMismatch)
		}
	})

	t.Run("non-positive topK", func(t *testing.T) {
		r := NewRanker(mustStore(t, item("A", 1, 0)))
		if _, err := r.Rank([]float32{1, 0}, 0); !errors.Is(err, e.ErrInvalidTopK) {
			t.Errorf("Rank() error = %v, want %v", err, e.ErrInvalidTopK)
		}
	})
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int32
		want   float64
	}{
		{0.123456, 4, 0.1235},
		{0.99999, 2, 1},
		{1.0005, 3, 1.001},
		{-0.25, 1, -0.3},
		{0, 3, 0},
	}

	for _, tt := range tests {
		if got := Round(tt.in, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}
}
