package pgdb

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// CatalogRepo реализует хранение каталога поверх PostgreSQL.
type CatalogRepo struct {
	pool *pgxpool.Pool
	conv converter.CatalogItemConverter
}

func NewCatalogRepo(pool *pgxpool.Pool, conv converter.CatalogItemConverter) *CatalogRepo {
	return &CatalogRepo{pool: pool, conv: conv}
}

// Load возвращает каталог в порядке импорта.
func (c *CatalogRepo) Load(ctx context.Context) ([]domain.CatalogItem, error) {
	query := `
		SELECT product_id, position, embedding, launch_on, last_seen_date, discount, url
		FROM catalog_items
		ORDER BY position, product_id
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.CatalogItem, 0)
	for rows.Next() {
		var model converter.CatalogItemModel
		if err := rows.Scan(
			&model.ProductID, &model.Position, &model.Embedding,
			&model.LaunchOn, &model.LastSeenDate, &model.Discount, &model.URL,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *c.conv.ToEntity(&model))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// Upsert заменяет каталог снимком внутри транзакции из контекста:
// записи обновляются по product_id, отсутствующие в снимке удаляются.
func (c *CatalogRepo) Upsert(ctx context.Context, items []domain.CatalogItem) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	// VALUES ($1..$7) product_id, position, embedding, launch_on, last_seen_date, discount, url
	query := `
		INSERT INTO catalog_items (product_id, position, embedding, launch_on, last_seen_date, discount, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id)
		DO UPDATE SET
			position = EXCLUDED.position,
			embedding = EXCLUDED.embedding,
			launch_on = EXCLUDED.launch_on,
			last_seen_date = EXCLUDED.last_seen_date,
			discount = EXCLUDED.discount,
			url = EXCLUDED.url,
			updated_at = NOW()
	`

	ids := make([]string, len(items))
	batch := &pgx.Batch{}
	for i := range items {
		m := c.conv.ToModel(&items[i], i)
		ids[i] = m.ProductID
		batch.Queue(query, m.ProductID, m.Position, m.Embedding, m.LaunchOn, m.LastSeenDate, m.Discount, m.URL)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM catalog_items WHERE NOT (product_id = ANY($1))`, ids); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
