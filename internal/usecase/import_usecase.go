package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/catalog"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// ImportUseCase раскладывает снимок каталога по хранилищам: Postgres, Qdrant, MinIO.
type ImportUseCase struct {
	dbPool       transaction.Transactional
	catalogRepo  CatalogWriter
	vectorRepo   CatalogWriter
	snapshotRepo SnapshotRepository
	logger       logger.Logger
}

// NewImportUC принимает nil для хранилищ, которые не настроены.
func NewImportUC(
	dbPool transaction.Transactional,
	catalogRepo CatalogWriter,
	vectorRepo CatalogWriter,
	snapshotRepo SnapshotRepository,
	logger logger.Logger,
) *ImportUseCase {
	return &ImportUseCase{
		dbPool:       dbPool,
		catalogRepo:  catalogRepo,
		vectorRepo:   vectorRepo,
		snapshotRepo: snapshotRepo,
		logger:       logger,
	}
}

// Import проверяет снимок теми же правилами, что и загрузка при старте, и записывает его.
func (i *ImportUseCase) Import(ctx context.Context, req *ImportReq) (*ImportRes, error) {
	const op = "ImportUseCase.Import"

	store, err := catalog.NewStore(req.Items)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res := &ImportRes{Items: store.Len(), Dimension: store.Dimension()}

	if req.Targets.Postgres && i.catalogRepo != nil {
		if err := i.importPostgres(ctx, store); err != nil {
			return nil, e.Wrap(op, err)
		}
		res.Targets = append(res.Targets, "postgres")
		i.logger.Infof("catalog imported to postgres: %d items", store.Len())
	}

	if req.Targets.Qdrant && i.vectorRepo != nil {
		if err := i.vectorRepo.Upsert(ctx, store.Items()); err != nil {
			return nil, e.Wrap(op, err)
		}
		res.Targets = append(res.Targets, "qdrant")
		i.logger.Infof("catalog imported to qdrant: %d items", store.Len())
	}

	if req.Targets.Minio && i.snapshotRepo != nil {
		if err := i.snapshotRepo.Upload(ctx, store.Items()); err != nil {
			return nil, e.Wrap(op, err)
		}
		res.Targets = append(res.Targets, "minio")
		i.logger.Infof("catalog snapshot uploaded to minio")
	}

	return res, nil
}

// importPostgres записывает весь снимок одной транзакцией.
func (i *ImportUseCase) importPostgres(ctx context.Context, store *catalog.Store) (err error) {
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, i.dbPool)
	if err != nil {
		return err
	}
	// Если произошла ошибка, происходит Rollback транзакции
	defer func() {
		if err != nil && tx.IsActive() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				i.logger.Warnf("Rollback failed: %v", rbErr)
			}
		}
	}()

	pgxTx, ok := tx.Transaction().(pgx.Tx)
	if !ok {
		return e.ErrTransactionNotFound
	}
	ctx = tr.WithTx(ctx, pgxTx)

	if err = i.catalogRepo.Upsert(ctx, store.Items()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
