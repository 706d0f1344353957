package converter

import (
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/jackc/pgx/v5/pgtype"
)

// CatalogItemConverter преобразует CatalogItem между domain и моделью PostgreSQL.
type CatalogItemConverter interface {
	ToModel(entity *domain.CatalogItem, position int) *CatalogItemModel
	ToEntity(model *CatalogItemModel) *domain.CatalogItem
}

type catalogItemConverter struct{}

func NewCatalogItemConverter() CatalogItemConverter {
	return catalogItemConverter{}
}

func (catalogItemConverter) ToModel(entity *domain.CatalogItem, position int) *CatalogItemModel {
	return &CatalogItemModel{
		ProductID:    entity.ProductID,
		Position:     int32(position),
		Embedding:    entity.Embedding,
		LaunchOn:     ConvertDate(entity.LaunchOn),
		LastSeenDate: ConvertDate(entity.LastSeenDate),
		Discount:     entity.Discount,
		URL:          pgtype.Text{String: entity.URL, Valid: entity.URL != ""},
	}
}

func (catalogItemConverter) ToEntity(model *CatalogItemModel) *domain.CatalogItem {
	return domain.NewCatalogItem(
		model.ProductID,
		model.Embedding,
		ConvertPgDate(model.LaunchOn),
		ConvertPgDate(model.LastSeenDate),
		model.Discount,
		model.URL.String,
	)
}

// ConvertDate переводит дату снимка в DATE. Непарсящаяся дата сохраняется как NULL.
func ConvertDate(s string) pgtype.Date {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return pgtype.Date{}
	}

	return pgtype.Date{Time: t, Valid: true}
}

// ConvertPgDate возвращает пустую строку для NULL, что даёт нулевой trend score.
func ConvertPgDate(d pgtype.Date) string {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return ""
	}

	return d.Time.Format(domain.DateLayout)
}
