package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type SearchUC interface {
	SearchByImage(ctx context.Context, req *SearchByImageReq) (*SearchRes, error)
	Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error)
	Similar(ctx context.Context, req *SimilarReq) (*RecommendRes, error)
}

type AnalyzeUC interface {
	Analyze(ctx context.Context, req *AnalyzeReq) (*domain.Analysis, error)
}

type ImportUC interface {
	Import(ctx context.Context, req *ImportReq) (*ImportRes, error)
}
