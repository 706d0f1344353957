package cfg

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

// Источники каталога эмбеддингов.
const (
	CatalogSourceFile     = "file"
	CatalogSourceMinio    = "minio"
	CatalogSourcePostgres = "postgres"
	CatalogSourceQdrant   = "qdrant"
)

type Config struct {
	Http    *HTTPConfig
	Grpc    *GRPCConfig
	Catalog *CatalogCfg
	Minio   *MinIOCfg
	Db      *PGDBCfg
	Qdrant  *QdrantCfg
	Redis   *RedisCfg
	Ml      *MLServiceCfg
	Llm     *LLMCfg
	Kafka   *KafkaCfg
}

type HTTPConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxImageSize       int64    // максимальный размер загружаемого изображения в байтах
	CORSAllowedOrigins []string // разрешённые источники CORS
	AnalyzeRateLimit   int      // запросов к /analyze в минуту с одного IP, 0 отключает ограничение
	SwaggerURL         string
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type CatalogCfg struct {
	Source         string // file, minio, postgres, qdrant
	Path           string // путь к JSON-снимку для source=file
	ObjectKey      string // ключ объекта со снимком для source=minio
	SearchTopK     int    // top-k для поиска по изображению (включая сам загруженный товар)
	PerItemTopK    int    // top-k для каждого товара истории
	RecommendLimit int    // максимальное количество рекомендаций
	MaxConcurrent  int    // параллельность ранжирования по истории
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название бакета со снимком каталога
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64
	ScrollBatch          uint32
}

type RedisCfg struct {
	Enabled     bool
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	AnalysisTTL time.Duration
}

type MLServiceCfg struct {
	Addr          string
	MaxConcurrent int
	MaxRetries    int
	Timeout       time.Duration
}

type LLMCfg struct {
	APIKey           string
	BaseURL          string
	Model            string
	Timeout          time.Duration
	FailureThreshold uint32        // подряд идущих ошибок до размыкания circuit breaker
	OpenTimeout      time.Duration // время в состоянии open
}

type KafkaCfg struct {
	Topic        string
	Brokers      []string
	BatchTimeout time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	catalog, err := loadCatalogCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	llm, err := loadLLMCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:    http,
		Grpc:    loadGRPCConfig(),
		Catalog: catalog,
		Minio:   minio,
		Db:      loadPGDBCfg(),
		Qdrant:  qdrant,
		Redis:   redis,
		Ml:      ml,
		Llm:     llm,
		Kafka:   kafka,
	}, nil
}

// Validate проверяет, что заданы переменные, необходимые выбранному источнику каталога.
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case CatalogSourceFile:
		return requireEnv(map[string]string{"CATALOG_PATH": c.Catalog.Path})
	case CatalogSourceMinio:
		return c.validateMinio()
	case CatalogSourcePostgres:
		return c.validatePGDB()
	case CatalogSourceQdrant:
		return c.validateQdrant()
	default:
		return e.Wrap(c.Catalog.Source, e.ErrUnknownCatalogSource)
	}
}

// ValidateSeed проверяет конфигурацию для утилиты импорта каталога.
func (c *Config) ValidateSeed(postgres, qdrant, minio bool) error {
	if postgres {
		if err := c.validatePGDB(); err != nil {
			return err
		}
	}
	if qdrant {
		if err := c.validateQdrant(); err != nil {
			return err
		}
	}
	if minio {
		if err := c.validateMinio(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateMinio() error {
	return requireEnv(map[string]string{
		"BUCKET_NAME":         c.Minio.BucketName,
		"MINIO_ROOT_USER":     c.Minio.MinioRootUser,
		"MINIO_ROOT_PASSWORD": c.Minio.MinioRootPassword,
		"CATALOG_OBJECT_KEY":  c.Catalog.ObjectKey,
	})
}

func (c *Config) validatePGDB() error {
	return requireEnv(map[string]string{
		"POSTGRES_USER":     c.Db.User,
		"POSTGRES_PASSWORD": c.Db.Password,
		"POSTGRES_DB":       c.Db.DBName,
	})
}

func (c *Config) validateQdrant() error {
	return requireEnv(map[string]string{
		"QDRANT_HOST":     c.Qdrant.Host,
		"COLLECTION_NAME": c.Qdrant.QdrantCollectionName,
	})
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort             = "8080"
		defaultReadTimeout      = 15 * time.Second
		defaultWriteTimeout     = 60 * time.Second
		defaultIdleTimeout      = 60 * time.Second
		defaultMaxImageSize     = 15 << 20
		defaultAnalyzeRateLimit = 30
		defaultSwaggerURL       = "http://localhost:8080/swagger/doc.json"
	)

	// PORT выставляется платформой (Cloud Run и т.п.), HTTP_PORT имеет приоритет.
	port := getEnvOrDefault("HTTP_PORT", getEnvOrDefault("PORT", defaultPort))

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	maxImageSize, err := parseIntEnv("MAX_IMAGE_SIZE", defaultMaxImageSize)
	if err != nil {
		log.Errorf(err, "invalid MAX_IMAGE_SIZE")
		return nil, err
	}

	rateLimit, err := parseIntEnv("ANALYZE_RATE_LIMIT", defaultAnalyzeRateLimit)
	if err != nil {
		log.Errorf(err, "invalid ANALYZE_RATE_LIMIT")
		return nil, err
	}

	return &HTTPConfig{
		Port:               port,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		MaxImageSize:       int64(maxImageSize),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		AnalyzeRateLimit:   rateLimit,
		SwaggerURL:         getEnvOrDefault("SWAGGER_URL", defaultSwaggerURL),
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadCatalogCfg(log logger.Logger) (*CatalogCfg, error) {
	const (
		defaultSource         = CatalogSourceFile
		defaultPath           = "data/catalog.json"
		defaultObjectKey      = "catalog/catalog.json"
		defaultSearchTopK     = 6
		defaultPerItemTopK    = 14
		defaultRecommendLimit = 14
		defaultMaxConcurrent  = 4
	)

	source := strings.ToLower(getEnvOrDefault("CATALOG_SOURCE", defaultSource))
	switch source {
	case CatalogSourceFile, CatalogSourceMinio, CatalogSourcePostgres, CatalogSourceQdrant:
	default:
		err := e.Wrap(source, e.ErrUnknownCatalogSource)
		log.Errorf(err, "invalid CATALOG_SOURCE")
		return nil, err
	}

	searchTopK, err := parsePositiveIntEnv("CATALOG_SEARCH_TOP_K", defaultSearchTopK)
	if err != nil {
		log.Errorf(err, "invalid CATALOG_SEARCH_TOP_K")
		return nil, err
	}

	perItemTopK, err := parsePositiveIntEnv("CATALOG_PER_ITEM_TOP_K", defaultPerItemTopK)
	if err != nil {
		log.Errorf(err, "invalid CATALOG_PER_ITEM_TOP_K")
		return nil, err
	}

	recommendLimit, err := parsePositiveIntEnv("CATALOG_RECOMMEND_LIMIT", defaultRecommendLimit)
	if err != nil {
		log.Errorf(err, "invalid CATALOG_RECOMMEND_LIMIT")
		return nil, err
	}

	maxConcurrent, err := parsePositiveIntEnv("CATALOG_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		log.Errorf(err, "invalid CATALOG_MAX_CONCURRENT")
		return nil, err
	}

	return &CatalogCfg{
		Source:         source,
		Path:           getEnvOrDefault("CATALOG_PATH", defaultPath),
		ObjectKey:      getEnvOrDefault("CATALOG_OBJECT_KEY", defaultObjectKey),
		SearchTopK:     searchTopK,
		PerItemTopK:    perItemTopK,
		RecommendLimit: recommendLimit,
		MaxConcurrent:  maxConcurrent,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", defaultUseSSL)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnv("BUCKET_NAME"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadPGDBCfg() *PGDBCfg {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     getEnv("POSTGRES_USER"),
		Password: getEnv("POSTGRES_PASSWORD"),
		DBName:   getEnv("POSTGRES_DB"),
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultVectorSize     = "2048"
		defaultScrollBatch    = 256
	)

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", defaultUseTLS)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	vectorSize, err := strconv.ParseUint(getEnvOrDefault("VECTOR_SIZE", defaultVectorSize), 10, 64)
	if err != nil {
		logger.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	scrollBatch, err := parsePositiveIntEnv("QDRANT_SCROLL_BATCH", defaultScrollBatch)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_SCROLL_BATCH")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnv("QDRANT_HOST"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnv("COLLECTION_NAME"),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
		ScrollBatch:          uint32(scrollBatch),
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultEnabled      = true
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultAnalysisTTL  = 24 * time.Hour
	)

	enabled, err := parseBoolEnv("REDIS_ENABLED", defaultEnabled)
	if err != nil {
		log.Errorf(err, "invalid REDIS_ENABLED")
		return nil, err
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	analysisTTL, err := parseDurationEnv("ANALYSIS_TTL", defaultAnalysisTTL)
	if err != nil {
		log.Errorf(err, "invalid ANALYSIS_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Enabled:     enabled,
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		AnalysisTTL: analysisTTL,
	}, nil
}

func loadMLServiceCfg(log logger.Logger) (*MLServiceCfg, error) {
	const (
		defaultHost          = "ml-service"
		defaultPort          = "50051"
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
		defaultTimeout       = 10 * time.Second
	)

	maxRetries, err := parsePositiveIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid ML_MAX_RETRIES")
		return nil, err
	}

	timeout, err := parseDurationEnv("ML_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_TIMEOUT")
		return nil, err
	}

	host := getEnvOrDefault("ML_HOST", defaultHost)
	port := getEnvOrDefault("ML_PORT", defaultPort)

	return &MLServiceCfg{
		Addr:          host + ":" + port,
		MaxConcurrent: defaultMaxConcurrent,
		MaxRetries:    maxRetries,
		Timeout:       timeout,
	}, nil
}

func loadLLMCfg(log logger.Logger) (*LLMCfg, error) {
	const (
		defaultBaseURL          = "https://generativelanguage.googleapis.com/v1beta/openai/"
		defaultModel            = "gemini-1.5-flash"
		defaultTimeout          = 60 * time.Second
		defaultFailureThreshold = 5
		defaultOpenTimeout      = 30 * time.Second
	)

	timeout, err := parseDurationEnv("LLM_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid LLM_TIMEOUT")
		return nil, err
	}

	threshold, err := parsePositiveIntEnv("LLM_FAILURE_THRESHOLD", defaultFailureThreshold)
	if err != nil {
		log.Errorf(err, "invalid LLM_FAILURE_THRESHOLD")
		return nil, err
	}

	openTimeout, err := parseDurationEnv("LLM_OPEN_TIMEOUT", defaultOpenTimeout)
	if err != nil {
		log.Errorf(err, "invalid LLM_OPEN_TIMEOUT")
		return nil, err
	}

	// GENAI_API_KEY оставлен для совместимости со старыми окружениями.
	apiKey := getEnvOrDefault("LLM_API_KEY", getEnv("GENAI_API_KEY"))

	return &LLMCfg{
		APIKey:           apiKey,
		BaseURL:          getEnvOrDefault("LLM_BASE_URL", defaultBaseURL),
		Model:            getEnvOrDefault("LLM_MODEL", defaultModel),
		Timeout:          timeout,
		FailureThreshold: uint32(threshold),
		OpenTimeout:      openTimeout,
	}, nil
}

func loadKafkaCfg(log logger.Logger) (*KafkaCfg, error) {
	const (
		defaultTopic        = "visual-search.events"
		defaultBatchTimeout = 500 * time.Millisecond
	)

	batchTimeout, err := parseDurationEnv("KAFKA_BATCH_TIMEOUT", defaultBatchTimeout)
	if err != nil {
		log.Errorf(err, "invalid KAFKA_BATCH_TIMEOUT")
		return nil, err
	}

	// Пустой KAFKA_BROKERS отключает публикацию событий.
	return &KafkaCfg{
		Brokers:      splitList(getEnv("KAFKA_BROKERS")),
		Topic:        getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		BatchTimeout: batchTimeout,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return intValue, nil
}

// parsePositiveIntEnv работает как parseIntEnv, но отклоняет значения <= 0.
func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	n, err := parseIntEnv(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return n, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return b, nil
}

// splitList разбирает список через запятую, отбрасывая пустые элементы.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// requireEnv возвращает ошибку со списком незаданных обязательных переменных.
func requireEnv(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)

	return e.Wrap(strings.Join(missing, ", "), e.ErrMissingEnvVariable)
}
