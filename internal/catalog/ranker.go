package catalog

import (
	"math"
	"sort"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

// Ranker выполняет полный перебор каталога по косинусной близости.
type Ranker struct {
	store *Store
}

func NewRanker(store *Store) *Ranker {
	return &Ranker{store: store}
}

// Rank возвращает до topK товаров, отсортированных по убыванию косинусной близости к query.
// При равных оценках порядок соответствует порядку загрузки каталога.
// Нулевой вектор запроса (или товара) даёт близость 0.
func (r *Ranker) Rank(query []float32, topK int) ([]domain.Match, error) {
	const op = "Ranker.Rank"

	if topK <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidTopK)
	}

	items := r.store.items
	if len(items) == 0 {
		return []domain.Match{}, nil
	}

	if len(query) != r.store.dimension {
		return nil, e.Wrap(op, e.ErrDimensionMismatch)
	}

	start := time.Now()
	defer func() { metrics.RankDuration.Observe(time.Since(start).Seconds()) }()

	qNorm := norm(query)
	matches := make([]domain.Match, len(items))
	for i, item := range items {
		matches[i] = domain.NewMatch(item.ProductID, cosine(query, qNorm, item.Embedding, r.store.norms[i]))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

// cosine считает dot(a, b) / (|a| * |b|) с заранее посчитанными нормами.
func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	sim := dot / (aNorm * bNorm)
	if math.IsNaN(sim) {
		return 0
	}

	return sim
}
