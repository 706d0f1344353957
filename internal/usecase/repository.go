package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// CatalogRepository — источник снимка каталога. Порядок элементов задаёт порядок вставки в Store.
type CatalogRepository interface {
	Load(ctx context.Context) ([]domain.CatalogItem, error)
}

type CatalogWriter interface {
	Upsert(ctx context.Context, items []domain.CatalogItem) error
}

type SnapshotRepository interface {
	Upload(ctx context.Context, items []domain.CatalogItem) error
}

type AnalysisCacheRepository interface {
	Get(ctx context.Context, imageHash string) (*domain.Analysis, error)
	Set(ctx context.Context, imageHash string, analysis *domain.Analysis) error
}
