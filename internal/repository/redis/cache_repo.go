package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.AnalysisConverter
	ttl    time.Duration
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.AnalysisConverter,
	ttl time.Duration, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		ttl:    ttl,
		logger: logger,
	}
}

// Get возвращает закэшированный анализ изображения или e.ErrCacheMiss.
// Повреждённая запись удаляется и считается промахом.
func (c *CacheRepo) Get(ctx context.Context, imageHash string) (*domain.Analysis, error) {
	key := analysisKey(imageHash)

	data, err := c.client.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, e.ErrCacheMiss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.AnalysisRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		c.logger.Warnf("Redis unmarshal failed for %s: %v", key, e.Wrap(whereami.WhereAmI(), err))
		if err := c.client.Client.Del(ctx, key).Err(); err != nil {
			c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, e.ErrCacheMiss
	}

	return c.conv.ToEntity(&model), nil
}

// Set кэширует анализ с TTL из конфигурации.
func (c *CacheRepo) Set(ctx context.Context, imageHash string, analysis *domain.Analysis) error {
	data, err := json.Marshal(c.conv.ToRedisModel(analysis, time.Now()))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, analysisKey(imageHash), data, c.ttl).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// analysisKey возвращает Redis-ключ анализа по sha256 изображения
func analysisKey(imageHash string) string {
	return fmt.Sprintf("analysis:%s", imageHash)
}
