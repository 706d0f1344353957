package http

import (
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
)

// ItemResponse описывает товар в ответе поиска или рекомендаций.
type ItemResponse struct {
	ProductID  string  `json:"product_id"`
	Score      float64 `json:"score"`
	URL        string  `json:"url"`
	TrendScore float64 `json:"trend_score"`
}

// SearchResponse: ответ поиска по изображению. Uploaded равен null для пустого каталога.
type SearchResponse struct {
	Uploaded *ItemResponse  `json:"uploaded"`
	Results  []ItemResponse `json:"results"`
}

type RecommendRequest struct {
	History []string `json:"history"`
}

type RecommendResponse struct {
	Results []ItemResponse `json:"results"`
}

type AnalyzeResponse struct {
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
}

func toItemResponse(item domain.ScoredItem) ItemResponse {
	return ItemResponse{
		ProductID:  item.ProductID,
		Score:      item.Score,
		URL:        item.URL,
		TrendScore: item.TrendScore,
	}
}

func toItemsResponse(items []domain.ScoredItem) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, item := range items {
		out[i] = toItemResponse(item)
	}

	return out
}

func toSearchResponse(res *usecase.SearchRes) *SearchResponse {
	resp := &SearchResponse{Results: toItemsResponse(res.Results)}
	if res.Uploaded != nil {
		uploaded := toItemResponse(*res.Uploaded)
		resp.Uploaded = &uploaded
	}

	return resp
}

func toAnalyzeResponse(a *domain.Analysis) *AnalyzeResponse {
	suggestions := a.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	return &AnalyzeResponse{Description: a.Description, Suggestions: suggestions}
}
