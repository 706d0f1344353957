// Утилита seed раскладывает JSON-снимок каталога по хранилищам:
// таблица catalog_items в Postgres, коллекция Qdrant и объект в MinIO.
//
//	seed -snapshot data/catalog.json -skip-minio
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	s3Repo "github.com/DRSN-tech/visual-search/internal/repository/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/visual-search/internal/repository/qdrant"
	"github.com/DRSN-tech/visual-search/internal/repository/snapshot"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/closer"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/postgres"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
)

const seedTimeout = 5 * time.Minute

type options struct {
	snapshotPath string
	targets      usecase.ImportTargets
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)

	opts := &options{}
	var skipPostgres, skipQdrant, skipMinio bool
	fs.StringVar(&opts.snapshotPath, "snapshot", "", "путь к JSON-снимку каталога (по умолчанию CATALOG_PATH)")
	fs.BoolVar(&skipPostgres, "skip-postgres", false, "не записывать каталог в Postgres")
	fs.BoolVar(&skipQdrant, "skip-qdrant", false, "не записывать векторы в Qdrant")
	fs.BoolVar(&skipMinio, "skip-minio", false, "не загружать снимок в MinIO")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.targets = usecase.ImportTargets{
		Postgres: !skipPostgres,
		Qdrant:   !skipQdrant,
		Minio:    !skipMinio,
	}
	if !opts.targets.Postgres && !opts.targets.Qdrant && !opts.targets.Minio {
		return nil, e.Wrap("all targets skipped", e.ErrStatusBadRequest)
	}

	return opts, nil
}

func main() {
	log := logger.NewSlogLogger()

	if err := godotenv.Load(); err != nil {
		log.Debugf(".env not loaded: %v", err)
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Errorf(err, "invalid flags")
		os.Exit(2)
	}

	if err := run(opts, log); err != nil {
		log.Errorf(err, "seed failed")
		os.Exit(1)
	}
}

func run(opts *options, log logger.Logger) error {
	cfg, err := config.Load(log)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if err := cfg.ValidateSeed(opts.targets.Postgres, opts.targets.Qdrant, opts.targets.Minio); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	path := opts.snapshotPath
	if path == "" {
		path = cfg.Catalog.Path
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	items, err := snapshot.NewFileRepo(path).Load(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	cl := closer.NewCloser(0)
	defer func() {
		if err := cl.Close(context.Background()); err != nil {
			log.Warnf("close: %v", err)
		}
	}()

	var (
		dbPool       transaction.Transactional
		catalogRepo  usecase.CatalogWriter
		vectorRepo   usecase.CatalogWriter
		snapshotRepo usecase.SnapshotRepository
	)

	if opts.targets.Postgres {
		db, err := postgres.Connect(ctx, cfg.Db)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		cl.Add("postgres", func(context.Context) error {
			db.Close()
			return nil
		})
		if err := db.RunMigrations(postgres.DefaultMigrationsURL, log); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		dbPool = db.Pool
		catalogRepo = pgdb.NewCatalogRepo(db.Pool, pgdbConv.NewCatalogItemConverter())
	}

	if opts.targets.Qdrant {
		qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		cl.AddErr("qdrant", qdrantClient.Close)
		vectorRepo = qdrantRepo.NewEmbeddingRepo(qdrantClient, cfg.Qdrant.ScrollBatch)
	}

	if opts.targets.Minio {
		minioClient, err := clients.NewMinIOClient(cfg.Minio)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		if err := clients.EnsureBucket(ctx, minioClient, cfg.Minio.BucketName); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		snapshotRepo = s3Repo.NewSnapshotRepo(minioClient, cfg.Minio, cfg.Catalog)
	}

	importUC := usecase.NewImportUC(dbPool, catalogRepo, vectorRepo, snapshotRepo, log)
	res, err := importUC.Import(ctx, usecase.NewImportReq(items, opts.targets))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	log.Infof("seed completed: %d items, dimension %d, targets: %s", res.Items, res.Dimension, strings.Join(res.Targets, ", "))
	return nil
}
