package domain

// DateLayout — формат календарной даты в метаданных каталога.
const DateLayout = "2006-01-02"

// CatalogItem описывает товар каталога с предрассчитанным эмбеддингом изображения.
// Даты хранятся строками как пришли из источника: некорректная дата не ломает загрузку,
// а лишь обнуляет trend score.
type CatalogItem struct {
	ProductID    string
	Embedding    []float32
	LaunchOn     string  // дата запуска, YYYY-MM-DD
	LastSeenDate string  // дата последнего появления, YYYY-MM-DD
	Discount     float64 // скидка в процентах, 0-100
	URL          string
}

func NewCatalogItem(productID string, embedding []float32, launchOn, lastSeenDate string, discount float64, url string) *CatalogItem {
	return &CatalogItem{
		ProductID:    productID,
		Embedding:    embedding,
		LaunchOn:     launchOn,
		LastSeenDate: lastSeenDate,
		Discount:     discount,
		URL:          url,
	}
}
