package qdrant

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// Ключи payload точки каталога.
const (
	payloadProductID    = "product_id"
	payloadLaunchOn     = "launch_on"
	payloadLastSeenDate = "last_seen_date"
	payloadDiscount     = "discount"
	payloadURL          = "url"
	payloadPosition     = "position"
)

// pointNamespace: пространство имён UUIDv5 для идентификаторов точек по product_id.
var pointNamespace = uuid.MustParse("6f1c2a52-3c1e-4c55-9d1f-6a8e0b7d2c11")

// EmbeddingRepo репозиторий для работы с embedding-векторами каталога в Qdrant
type EmbeddingRepo struct {
	client    *clients.QdrantClient
	batchSize uint32
}

func NewEmbeddingRepo(client *clients.QdrantClient, batchSize uint32) *EmbeddingRepo {
	return &EmbeddingRepo{client: client, batchSize: batchSize}
}

// PointID возвращает детерминированный идентификатор точки, повторный импорт перезаписывает её.
func PointID(productID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(productID)).String()
}

// pointScroller: часть API клиента Qdrant, нужная для постраничного чтения.
type pointScroller interface {
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
}

// Load выгружает всю коллекцию постранично и восстанавливает порядок импорта по position.
func (q *EmbeddingRepo) Load(ctx context.Context) ([]domain.CatalogItem, error) {
	points, err := scrollAll(ctx, q.client.Client, q.client.Collection, q.batchSize)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	type positioned struct {
		item     domain.CatalogItem
		position int64
	}

	result := make([]positioned, 0, len(points))
	for _, p := range points {
		item, position, err := pointToItem(p)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, positioned{item: item, position: position})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].position < result[j].position
	})

	items := make([]domain.CatalogItem, len(result))
	for i := range result {
		items[i] = result[i].item
	}

	return items, nil
}

// scrollAll читает коллекцию целиком. Offset в Scroll включительный, поэтому каждая страница
// запрашивается с одной лишней точкой: она становится offset следующей страницы.
func scrollAll(ctx context.Context, s pointScroller, collection string, batch uint32) ([]*qdrant.RetrievedPoint, error) {
	batch = min(max(batch, 1), math.MaxUint32-1)

	var (
		all    []*qdrant.RetrievedPoint
		offset *qdrant.PointId
	)
	for {
		points, err := s.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(batch + 1),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, err
		}

		if uint32(len(points)) <= batch {
			return append(all, points...), nil
		}

		next := points[batch].GetId()
		if offset != nil && samePoint(next, offset) {
			return nil, fmt.Errorf("scroll offset %s does not advance", next.String())
		}
		all = append(all, points[:batch]...)
		offset = next
	}
}

// Upsert сохраняет или обновляет векторы каталога пачками по batchSize.
func (q *EmbeddingRepo) Upsert(ctx context.Context, items []domain.CatalogItem) error {
	if err := q.client.EnsureCollection(ctx, uint64(dimension(items))); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	batch := int(q.batchSize)
	for start := 0; start < len(items); start += batch {
		end := min(start+batch, len(items))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			item := items[i]
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(item.ProductID)),
				Vectors: qdrant.NewVectors(item.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadProductID:    item.ProductID,
					payloadLaunchOn:     item.LaunchOn,
					payloadLastSeenDate: item.LastSeenDate,
					payloadDiscount:     item.Discount,
					payloadURL:          item.URL,
					payloadPosition:     int64(i),
				}),
			})
		}

		if _, err := q.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.client.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

func pointToItem(p *qdrant.RetrievedPoint) (domain.CatalogItem, int64, error) {
	payload := p.GetPayload()

	productID := payload[payloadProductID].GetStringValue()
	if productID == "" {
		return domain.CatalogItem{}, 0, fmt.Errorf("point %s: %w", p.GetId().String(), e.ErrEmptyProductID)
	}

	vector := vectorData(p.GetVectors().GetVector())
	if len(vector) == 0 {
		return domain.CatalogItem{}, 0, fmt.Errorf("point %s: %w", productID, e.ErrVectorEmbeddingEmpty)
	}

	item := domain.NewCatalogItem(
		productID,
		vector,
		payload[payloadLaunchOn].GetStringValue(),
		payload[payloadLastSeenDate].GetStringValue(),
		numberValue(payload[payloadDiscount]),
		payload[payloadURL].GetStringValue(),
	)

	return *item, payload[payloadPosition].GetIntegerValue(), nil
}

func vectorData(v *qdrant.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}

	return v.GetData()
}

// numberValue читает число независимо от того, сохранено оно как integer или double.
func numberValue(v *qdrant.Value) float64 {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_IntegerValue:
		return float64(k.IntegerValue)
	default:
		return 0
	}
}

func samePoint(a, b *qdrant.PointId) bool {
	return a.GetUuid() == b.GetUuid() && a.GetNum() == b.GetNum()
}

func dimension(items []domain.CatalogItem) int {
	if len(items) == 0 {
		return 0
	}

	return len(items[0].Embedding)
}
