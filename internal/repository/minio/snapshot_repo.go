package minio

import (
	"bytes"
	"context"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/snapshot"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

const snapshotContentType = "application/json"

// SnapshotRepo хранит снимок каталога объектом в MinIO.
type SnapshotRepo struct {
	mc        *minio.Client
	bucket    string
	objectKey string
}

func NewSnapshotRepo(mc *minio.Client, minioCfg *cfg.MinIOCfg, catalogCfg *cfg.CatalogCfg) *SnapshotRepo {
	return &SnapshotRepo{
		mc:        mc,
		bucket:    minioCfg.BucketName,
		objectKey: catalogCfg.ObjectKey,
	}
}

// Load скачивает и декодирует снимок каталога.
func (s *SnapshotRepo) Load(ctx context.Context) ([]domain.CatalogItem, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, s.objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	items, err := snapshot.Decode(obj)
	if err != nil {
		return nil, e.Wrap(s.bucket+"/"+s.objectKey, err)
	}

	return items, nil
}

// Upload перезаписывает объект снимка.
func (s *SnapshotRepo) Upload(ctx context.Context, items []domain.CatalogItem) error {
	data, err := snapshot.Marshal(items)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	_, err = s.mc.PutObject(ctx, s.bucket, s.objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: snapshotContentType,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
