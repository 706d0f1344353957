package usecase

import "github.com/DRSN-tech/visual-search/internal/domain"

// SEARCH USECASE

// SearchByImageReq — запрос на поиск похожих товаров по изображению.
type SearchByImageReq struct {
	Image *domain.Image
}

func NewSearchByImageReq(image *domain.Image) *SearchByImageReq {
	return &SearchByImageReq{Image: image}
}

// SearchRes — результат поиска. Uploaded — лучший совпавший товар (самоидентификация
// загруженного изображения), nil при пустом каталоге. Results — остальные совпадения.
type SearchRes struct {
	Uploaded *domain.ScoredItem
	Results  []domain.ScoredItem
}

func NewSearchRes(uploaded *domain.ScoredItem, results []domain.ScoredItem) *SearchRes {
	if results == nil {
		results = []domain.ScoredItem{}
	}

	return &SearchRes{Uploaded: uploaded, Results: results}
}

// RecommendReq — запрос рекомендаций по истории просмотров.
type RecommendReq struct {
	History []string
}

func NewRecommendReq(history []string) *RecommendReq {
	return &RecommendReq{History: history}
}

// SimilarReq — запрос соседей товара каталога. TopK <= 0 означает значение по умолчанию.
type SimilarReq struct {
	ProductID string
	TopK      int
}

func NewSimilarReq(productID string, topK int) *SimilarReq {
	return &SimilarReq{ProductID: productID, TopK: topK}
}

type RecommendRes struct {
	Results []domain.ScoredItem
}

func NewRecommendRes(results []domain.ScoredItem) *RecommendRes {
	if results == nil {
		results = []domain.ScoredItem{}
	}

	return &RecommendRes{Results: results}
}

// ANALYZE USECASE

type AnalyzeReq struct {
	Image *domain.Image
}

func NewAnalyzeReq(image *domain.Image) *AnalyzeReq {
	return &AnalyzeReq{Image: image}
}

// IMPORT USECASE

// ImportTargets определяет, в какие хранилища записывается снимок.
type ImportTargets struct {
	Postgres bool
	Qdrant   bool
	Minio    bool
}

type ImportReq struct {
	Items   []domain.CatalogItem
	Targets ImportTargets
}

func NewImportReq(items []domain.CatalogItem, targets ImportTargets) *ImportReq {
	return &ImportReq{Items: items, Targets: targets}
}

type ImportRes struct {
	Items     int
	Dimension int
	Targets   []string
}

// INFRASTUCTURE

// VectorizeReq — запрос на векторизацию изображения.
type VectorizeReq struct {
	Image *domain.Image
}

func NewVectorizeReq(image *domain.Image) *VectorizeReq {
	return &VectorizeReq{Image: image}
}

// VectorizeRes — результат векторизации одного изображения.
type VectorizeRes struct {
	Vector       []float32
	ModelVersion string
}

func NewVectorizeRes(vector []float32, modelVersion string) *VectorizeRes {
	return &VectorizeRes{Vector: vector, ModelVersion: modelVersion}
}
