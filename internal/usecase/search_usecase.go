package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/visual-search/internal/catalog"
	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/google/uuid"
)

const (
	searchScorePlaces    = 4
	recommendScorePlaces = 2
	publishTimeout       = 2 * time.Second
)

// SearchUseCase отвечает за поиск похожих товаров и рекомендации по истории.
type SearchUseCase struct {
	store      *catalog.Store
	ranker     *catalog.Ranker
	aggregator *catalog.Aggregator
	trend      *catalog.TrendScorer
	mlService  MlServiceInfra
	publisher  EventPublisher
	cfg        *cfg.CatalogCfg
	logger     logger.Logger
}

func NewSearchUC(
	store *catalog.Store,
	ranker *catalog.Ranker,
	aggregator *catalog.Aggregator,
	trend *catalog.TrendScorer,
	mlService MlServiceInfra,
	publisher EventPublisher,
	cfg *cfg.CatalogCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		store:      store,
		ranker:     ranker,
		aggregator: aggregator,
		trend:      trend,
		mlService:  mlService,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
	}
}

// SearchByImage векторизует изображение и ищет ближайшие товары каталога.
// Первый результат считается самим загруженным товаром.
func (s *SearchUseCase) SearchByImage(ctx context.Context, req *SearchByImageReq) (*SearchRes, error) {
	const op = "SearchUseCase.SearchByImage"

	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImage)
	}

	vector, err := s.mlService.VectorizeImage(ctx, NewVectorizeReq(req.Image))
	if err != nil {
		s.logger.Errorf(err, "vectorize image %q", req.Image.Name)
		return nil, e.Wrap(op, errors.Join(e.ErrEmbeddingFailed, err))
	}

	matches, err := s.ranker.Rank(vector.Vector, s.cfg.SearchTopK)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	items := s.scoreMatches(matches, searchScorePlaces)
	if len(items) == 0 {
		return NewSearchRes(nil, nil), nil
	}

	res := NewSearchRes(&items[0], items[1:])
	s.publish(domain.SearchEventImage, nil, items)

	return res, nil
}

// Recommend агрегирует соседей товаров из истории и возвращает лучших кандидатов.
func (s *SearchUseCase) Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error) {
	const op = "SearchUseCase.Recommend"

	if len(req.History) == 0 {
		return nil, e.Wrap(op, e.ErrNoHistory)
	}

	matches, err := s.aggregator.Aggregate(ctx, req.History, s.cfg.PerItemTopK, s.cfg.RecommendLimit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	items := s.scoreMatches(matches, recommendScorePlaces)
	s.publish(domain.SearchEventRecommend, req.History, items)

	return NewRecommendRes(items), nil
}

// Similar возвращает соседей товара каталога без него самого.
func (s *SearchUseCase) Similar(ctx context.Context, req *SimilarReq) (*RecommendRes, error) {
	const op = "SearchUseCase.Similar"

	if req.ProductID == "" {
		return nil, e.Wrap(op, e.ErrEmptyProductID)
	}

	item, ok := s.store.Get(req.ProductID)
	if !ok {
		return nil, e.Wrap(op, e.ErrProductNotFound)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.SearchTopK
	}
	// соседей не больше, чем товаров в каталоге
	topK = min(topK, s.store.Len())

	// +1 на сам товар, который всегда находится среди ближайших
	matches, err := s.ranker.Rank(item.Embedding, topK+1)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	neighbours := make([]domain.Match, 0, topK)
	for _, m := range matches {
		if m.ProductID == req.ProductID {
			continue
		}
		if len(neighbours) == topK {
			break
		}
		neighbours = append(neighbours, m)
	}

	items := s.scoreMatches(neighbours, searchScorePlaces)
	s.publish(domain.SearchEventSimilar, []string{req.ProductID}, items)

	return NewRecommendRes(items), nil
}

// scoreMatches дополняет совпадения ссылкой и trend score, округляя оценку.
func (s *SearchUseCase) scoreMatches(matches []domain.Match, places int32) []domain.ScoredItem {
	items := make([]domain.ScoredItem, 0, len(matches))
	for _, m := range matches {
		item, ok := s.store.Get(m.ProductID)
		if !ok {
			continue
		}

		items = append(items, domain.NewScoredItem(
			m.ProductID,
			catalog.Round(m.Score, places),
			item.URL,
			s.trend.Score(item.LaunchOn, item.LastSeenDate, item.Discount),
		))
	}

	return items
}

// publish отправляет событие в фоне: ошибки брокера не влияют на ответ.
func (s *SearchUseCase) publish(kind domain.SearchEventKind, queryIDs []string, items []domain.ScoredItem) {
	if s.publisher == nil {
		return
	}

	resultIDs := make([]string, len(items))
	for i, item := range items {
		resultIDs[i] = item.ProductID
	}
	event := domain.NewSearchEvent(uuid.NewString(), kind, queryIDs, resultIDs, time.Now().UTC())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warnf("Failed to publish search event %s: %v", event.ID, err)
		}
	}()
}
