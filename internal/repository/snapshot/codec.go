// Package snapshot описывает JSON-формат снимка каталога: массив записей в порядке загрузки.
package snapshot

import (
	"bytes"
	"fmt"
	"io"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Record описывает запись снимка.
type Record struct {
	ProductID    string    `json:"product_id" validate:"required"`
	Embedding    []float32 `json:"embedding" validate:"required,min=1"`
	LaunchOn     string    `json:"launch_on"`
	LastSeenDate string    `json:"last_seen_date"`
	Discount     float64   `json:"discount"`
	URL          string    `json:"url" validate:"omitempty,url"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode читает снимок и проверяет записи. Даты не валидируются:
// некорректная дата обнуляет trend score, но не ломает загрузку.
func Decode(r io.Reader) ([]domain.CatalogItem, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, e.Wrap("snapshot.Decode", fmt.Errorf("%w: %v", e.ErrInvalidSnapshot, err))
	}

	items := make([]domain.CatalogItem, 0, len(records))
	for i := range records {
		if err := validate.Struct(&records[i]); err != nil {
			return nil, e.Wrap("snapshot.Decode", fmt.Errorf("%w: record %d: %v", e.ErrInvalidSnapshot, i, err))
		}
		items = append(items, ToEntity(&records[i]))
	}

	return items, nil
}

// Encode сериализует каталог в формат снимка.
func Encode(w io.Writer, items []domain.CatalogItem) error {
	records := make([]Record, len(items))
	for i := range items {
		records[i] = ToRecord(&items[i])
	}

	return json.NewEncoder(w).Encode(records)
}

// Marshal возвращает снимок целиком, для загрузки в объектное хранилище.
func Marshal(items []domain.CatalogItem) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, items); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func ToEntity(r *Record) domain.CatalogItem {
	return *domain.NewCatalogItem(r.ProductID, r.Embedding, r.LaunchOn, r.LastSeenDate, r.Discount, r.URL)
}

func ToRecord(item *domain.CatalogItem) Record {
	return Record{
		ProductID:    item.ProductID,
		Embedding:    item.Embedding,
		LaunchOn:     item.LaunchOn,
		LastSeenDate: item.LastSeenDate,
		Discount:     item.Discount,
		URL:          item.URL,
	}
}
