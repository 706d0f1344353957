package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantClient хранит клиента вместе с настройками коллекции каталога.
type QdrantClient struct {
	Client     *qdrant.Client
	Collection string
	VectorSize uint64
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client:     client,
		Collection: cfg.QdrantCollectionName,
		VectorSize: cfg.VectorSize,
	}, nil
}

// EnsureCollection создаёт коллекцию с косинусной метрикой.
// vectorSize берётся из импортируемого снимка, если он известен, иначе из конфигурации.
func (c *QdrantClient) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := c.Client.CollectionExists(ctx, c.Collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	if vectorSize == 0 {
		vectorSize = c.VectorSize
	}

	if err := c.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}
