// Package catalog содержит ядро сервиса: неизменяемое хранилище эмбеддингов каталога,
// ранжирование по косинусной близости, trend score и агрегацию рекомендаций по истории.
package catalog

import (
	"fmt"
	"math"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

// Store неизменяемое in-memory хранилище каталога.
// Создаётся один раз при старте; после создания безопасно для конкурентного чтения без блокировок.
type Store struct {
	items     []domain.CatalogItem
	norms     []float64
	index     map[string]int
	dimension int
}

// NewStore валидирует записи и строит хранилище. Порядок items сохраняется и задаёт tie-break ранжирования.
// Векторы копируются, чтобы вызывающий код не мог изменить каталог после загрузки.
func NewStore(items []domain.CatalogItem) (*Store, error) {
	const op = "catalog.NewStore"

	s := &Store{
		items: make([]domain.CatalogItem, 0, len(items)),
		norms: make([]float64, 0, len(items)),
		index: make(map[string]int, len(items)),
	}

	for i, item := range items {
		if item.ProductID == "" {
			return nil, e.Wrap(op, fmt.Errorf("record %d: %w", i, e.ErrEmptyProductID))
		}
		if len(item.Embedding) == 0 {
			return nil, e.Wrap(op, fmt.Errorf("product %s: %w", item.ProductID, e.ErrVectorEmbeddingEmpty))
		}
		if !finite(item.Embedding) {
			return nil, e.Wrap(op, fmt.Errorf("product %s has non-finite values: %w", item.ProductID, e.ErrInvalidSnapshot))
		}
		if _, ok := s.index[item.ProductID]; ok {
			return nil, e.Wrap(op, fmt.Errorf("product %s: %w", item.ProductID, e.ErrDuplicateProduct))
		}
		if s.dimension == 0 {
			s.dimension = len(item.Embedding)
		} else if len(item.Embedding) != s.dimension {
			return nil, e.Wrap(op, fmt.Errorf("product %s has %d, want %d: %w",
				item.ProductID, len(item.Embedding), s.dimension, e.ErrDimensionMismatch))
		}

		item.Embedding = append([]float32(nil), item.Embedding...)
		s.index[item.ProductID] = len(s.items)
		s.items = append(s.items, item)
		s.norms = append(s.norms, norm(item.Embedding))
	}

	metrics.CatalogItems.Set(float64(len(s.items)))

	return s, nil
}

// Get возвращает товар по идентификатору.
func (s *Store) Get(productID string) (domain.CatalogItem, bool) {
	i, ok := s.index[productID]
	if !ok {
		return domain.CatalogItem{}, false
	}

	return s.items[i], true
}

// Len возвращает количество товаров в каталоге.
func (s *Store) Len() int {
	return len(s.items)
}

// Dimension возвращает размерность эмбеддингов (0 для пустого каталога).
func (s *Store) Dimension() int {
	return s.dimension
}

// Items возвращает товары в порядке загрузки. Срез нельзя модифицировать.
func (s *Store) Items() []domain.CatalogItem {
	return s.items
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return math.Sqrt(sum)
}

func finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}

	return true
}
