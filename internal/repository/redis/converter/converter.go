package converter

import (
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type AnalysisConverter interface {
	ToRedisModel(entity *domain.Analysis, cachedAt time.Time) *AnalysisRedisModel
	ToEntity(model *AnalysisRedisModel) *domain.Analysis
}

type analysisConverter struct{}

func NewAnalysisConverter() AnalysisConverter {
	return analysisConverter{}
}

func (analysisConverter) ToRedisModel(entity *domain.Analysis, cachedAt time.Time) *AnalysisRedisModel {
	return &AnalysisRedisModel{
		Description: entity.Description,
		Suggestions: entity.Suggestions,
		CachedAt:    cachedAt.Unix(),
	}
}

func (analysisConverter) ToEntity(model *AnalysisRedisModel) *domain.Analysis {
	return domain.NewAnalysis(model.Description, model.Suggestions)
}
