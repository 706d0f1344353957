package domain

// Match: пара (товар, оценка), результат ранжирования или агрегации.
type Match struct {
	ProductID string
	Score     float64
}

func NewMatch(productID string, score float64) Match {
	return Match{ProductID: productID, Score: score}
}

// ScoredItem — результат для внешнего ответа: оценка похожести, trend score и ссылка.
type ScoredItem struct {
	ProductID  string
	Score      float64
	URL        string
	TrendScore float64
}

func NewScoredItem(productID string, score float64, url string, trendScore float64) ScoredItem {
	return ScoredItem{
		ProductID:  productID,
		Score:      score,
		URL:        url,
		TrendScore: trendScore,
	}
}
