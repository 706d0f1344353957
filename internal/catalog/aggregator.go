package catalog

import (
	"context"
	"sort"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"golang.org/x/sync/errgroup"
)

// Aggregator строит рекомендации по истории просмотров: для каждого товара истории
// ищет соседей и суммирует их оценки. Товары, встречающиеся у нескольких элементов
// истории, набирают больший суммарный балл.
type Aggregator struct {
	store         *Store
	ranker        *Ranker
	maxConcurrent int
}

func NewAggregator(store *Store, ranker *Ranker, maxConcurrent int) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Aggregator{
		store:         store,
		ranker:        ranker,
		maxConcurrent: maxConcurrent,
	}
}

// Aggregate возвращает до limit кандидатов, отсортированных по сумме оценок.
// Неизвестные идентификаторы истории пропускаются, сами товары истории в результат не попадают.
// При равных суммах порядок определяется первым появлением кандидата при обходе истории.
func (a *Aggregator) Aggregate(ctx context.Context, history []string, perItemTopK, limit int) ([]domain.Match, error) {
	const op = "Aggregator.Aggregate"

	if perItemTopK <= 0 || limit <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidTopK)
	}

	inHistory := make(map[string]struct{}, len(history))
	for _, id := range history {
		inHistory[id] = struct{}{}
	}

	// Ранжирование по каждому товару истории выполняется параллельно,
	// слияние идёт строго в порядке истории.
	ranked := make([][]domain.Match, len(history))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrent)
	for i, id := range history {
		item, ok := a.store.Get(id)
		if !ok {
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			matches, err := a.ranker.Rank(item.Embedding, perItemTopK)
			if err != nil {
				return err
			}
			ranked[i] = matches

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, e.Wrap(op, err)
	}

	totals := make(map[string]float64)
	order := make([]string, 0)
	for _, matches := range ranked {
		for _, m := range matches {
			if _, ok := inHistory[m.ProductID]; ok {
				continue
			}
			if _, seen := totals[m.ProductID]; !seen {
				order = append(order, m.ProductID)
			}
			totals[m.ProductID] += m.Score
		}
	}

	result := make([]domain.Match, 0, len(order))
	for _, id := range order {
		result = append(result, domain.NewMatch(id, totals[id]))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}
