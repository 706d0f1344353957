package snapshot

import (
	"context"
	"os"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
)

// FileRepo загружает снимок каталога с локального диска.
type FileRepo struct {
	path string
}

func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (f *FileRepo) Load(_ context.Context) ([]domain.CatalogItem, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer file.Close()

	items, err := Decode(file)
	if err != nil {
		return nil, e.Wrap(f.path, err)
	}

	return items, nil
}
