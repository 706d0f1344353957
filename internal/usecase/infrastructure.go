package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type MlServiceInfra interface {
	VectorizeImage(ctx context.Context, req *VectorizeReq) (*VectorizeRes, error)
}

type DescriberInfra interface {
	Describe(ctx context.Context, image *domain.Image) (*domain.Analysis, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *domain.SearchEvent) error
}
