package converter

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// CatalogItemModel представляет запись таблицы catalog_items в PostgreSQL.
type CatalogItemModel struct {
	ProductID    string      `db:"product_id"`
	Position     int32       `db:"position"`
	Embedding    []float32   `db:"embedding"`
	LaunchOn     pgtype.Date `db:"launch_on"`
	LastSeenDate pgtype.Date `db:"last_seen_date"`
	Discount     float64     `db:"discount"`
	URL          pgtype.Text `db:"url"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    *time.Time  `db:"updated_at"`
}
