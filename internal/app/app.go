package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/visual-search/internal/catalog"
	config "github.com/DRSN-tech/visual-search/internal/cfg"
	v1Grpc "github.com/DRSN-tech/visual-search/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/kafka"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/llm"
	ml_service "github.com/DRSN-tech/visual-search/internal/infrastructure/ml-service"
	s3Repo "github.com/DRSN-tech/visual-search/internal/repository/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/visual-search/internal/repository/qdrant"
	"github.com/DRSN-tech/visual-search/internal/repository/redis"
	redisConv "github.com/DRSN-tech/visual-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/visual-search/internal/repository/snapshot"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/closer"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	pingTimeout     = 5 * time.Second
)

// App собирает зависимости сервиса и управляет его жизненным циклом.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	closer  *closer.Closer
	httpSrv *v1Http.Server
	grpcSrv *v1Grpc.GRPCServer
}

// NewApp загружает каталог и поднимает клиентов внешних сервисов.
// Ошибка загрузки каталога фатальна: сервис без каталога не стартует.
func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := a.init(ctx); err != nil {
		a.closeOnFailure()
		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context) error {
	items, err := a.loadCatalog(ctx)
	if err != nil {
		a.logger.Errorf(err, "failed to load catalog from %s", a.cfg.Catalog.Source)
		return e.Wrap(whereami.WhereAmI(), err)
	}

	store, err := catalog.NewStore(items)
	if err != nil {
		a.logger.Errorf(err, "invalid catalog")
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.logger.Infof("catalog loaded from %s: %d items, dimension %d", a.cfg.Catalog.Source, store.Len(), store.Dimension())

	ranker := catalog.NewRanker(store)
	aggregator := catalog.NewAggregator(store, ranker, a.cfg.Catalog.MaxConcurrent)
	trend := catalog.NewTrendScorer()

	ml, err := a.initMLService()
	if err != nil {
		return err
	}

	searchUC := usecase.NewSearchUC(
		store,
		ranker,
		aggregator,
		trend,
		ml,
		a.initPublisher(),
		a.cfg.Catalog,
		a.logger,
	)

	describer, err := a.initDescriber(ctx)
	if err != nil {
		return err
	}

	cacheRepo, err := a.initAnalysisCache(ctx)
	if err != nil {
		return err
	}

	analyzeUC := usecase.NewAnalyzeUC(describer, cacheRepo, a.logger)

	a.grpcSrv = v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)
	a.grpcSrv.RegisterServices(searchUC)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, a.cfg.Http, a.logger)
	router.Init(searchUC, analyzeUC)
	a.httpSrv = v1Http.NewServer(r, a.cfg.Http)

	return nil
}

// loadCatalog читает снимок каталога из источника CATALOG_SOURCE.
func (a *App) loadCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	var repo usecase.CatalogRepository

	switch a.cfg.Catalog.Source {
	case config.CatalogSourceFile:
		repo = snapshot.NewFileRepo(a.cfg.Catalog.Path)
	case config.CatalogSourceMinio:
		minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		repo = s3Repo.NewSnapshotRepo(minioClient, a.cfg.Minio, a.cfg.Catalog)
	case config.CatalogSourcePostgres:
		db, err := a.initPGDB(ctx)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		repo = pgdb.NewCatalogRepo(db.Pool, pgdbConv.NewCatalogItemConverter())
	case config.CatalogSourceQdrant:
		qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.AddErr("qdrant", qdrantClient.Close)
		repo = qdrantRepo.NewEmbeddingRepo(qdrantClient, a.cfg.Qdrant.ScrollBatch)
	default:
		return nil, e.Wrap(a.cfg.Catalog.Source, e.ErrUnknownCatalogSource)
	}

	return repo.Load(ctx)
}

// initPGDB подключается к базе и применяет миграции. Пул нужен только на время загрузки каталога.
func (a *App) initPGDB(ctx context.Context) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, a.cfg.Db)
	if err != nil {
		a.logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(postgres.DefaultMigrationsURL, a.logger); err != nil {
		db.Close()
		a.logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

func (a *App) initMLService() (*ml_service.MLService, error) {
	conn, err := grpc.NewClient(
		a.cfg.Ml.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()), // ML-сервис доступен только во внутренней сети
	)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize grpc client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddErr("ml-service", conn.Close)

	return ml_service.NewMLService(
		ml_service.NewVectorizeClient(conn),
		a.cfg.Ml.MaxConcurrent,
		a.cfg.Ml.MaxRetries,
		a.cfg.Ml.Timeout,
		a.logger,
	), nil
}

// initPublisher возвращает nil, если KAFKA_BROKERS не задан.
func (a *App) initPublisher() usecase.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Infof("kafka brokers are not set, search events are disabled")
		return nil
	}

	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	a.closer.AddErr("kafka", producer.Close)

	return producer
}

// initDescriber возвращает nil без ключа модели: /analyze тогда отвечает 503.
func (a *App) initDescriber(ctx context.Context) (usecase.DescriberInfra, error) {
	chat, err := llm.NewChatModel(ctx, a.cfg.Llm)
	if err != nil {
		if errors.Is(err, e.ErrDescriberDisabled) {
			a.logger.Warnf("LLM_API_KEY is not set, image analysis is disabled")
			return nil, nil
		}
		a.logger.Errorf(err, "failed to initialize chat model")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return llm.NewDescriber(chat, a.cfg.Llm, a.logger), nil
}

func (a *App) initAnalysisCache(ctx context.Context) (usecase.AnalysisCacheRepository, error) {
	if !a.cfg.Redis.Enabled {
		a.logger.Infof("analysis cache is disabled")
		return nil, nil
	}

	redisClient := clients.NewRedisClient(a.cfg.Redis)
	a.closer.AddErr("redis", redisClient.Close)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := redisClient.Ping(pingCtx); err != nil {
		a.logger.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return redis.NewCacheRepo(redisClient, redisConv.NewAnalysisConverter(), a.cfg.Redis.AnalysisTTL, a.logger), nil
}

// Run запускает HTTP и gRPC серверы и блокируется до сигнала остановки или падения сервера.
func (a *App) Run() error {
	a.closer.Add("grpc", a.grpcSrv.Stop)
	a.closer.Add("http", a.httpSrv.Stop)

	errCh := make(chan error, 2)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			errCh <- e.Wrap("gRPC server", err)
		}
	}()

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil {
			errCh <- e.Wrap("HTTP server", err)
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case sig := <-shutdown:
		a.logger.Infof("Received %s, stopping gracefully...", sig)
	}

	// === Graceful shutdown ===
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown completed with errors")
		return errors.Join(appErr, err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func (a *App) closeOnFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Warnf("cleanup after failed start: %v", err)
	}
}
