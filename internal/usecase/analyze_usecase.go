package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const cacheWriteTimeout = 500 * time.Millisecond

// AnalyzeUseCase описывает изображение генеративной моделью и кеширует ответ по хешу содержимого.
type AnalyzeUseCase struct {
	describer DescriberInfra
	cacheRepo AnalysisCacheRepository
	logger    logger.Logger
}

// NewAnalyzeUC принимает nil describer, если анализ отключён, и nil cacheRepo без кеша.
func NewAnalyzeUC(describer DescriberInfra, cacheRepo AnalysisCacheRepository, logger logger.Logger) *AnalyzeUseCase {
	return &AnalyzeUseCase{
		describer: describer,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

func (a *AnalyzeUseCase) Analyze(ctx context.Context, req *AnalyzeReq) (*domain.Analysis, error) {
	const op = "AnalyzeUseCase.Analyze"

	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImage)
	}

	if a.describer == nil {
		return nil, e.Wrap(op, e.ErrDescriberDisabled)
	}

	hash := imageHash(req.Image.Data)
	if cached := a.fromCache(ctx, hash); cached != nil {
		return cached, nil
	}

	analysis, err := a.describer.Describe(ctx, req.Image)
	if err != nil {
		a.logger.Errorf(err, "describe image %q", req.Image.Name)
		if errors.Is(err, e.ErrDescriberDisabled) {
			return nil, e.Wrap(op, err)
		}
		return nil, e.Wrap(op, errors.Join(e.ErrAnalyzeFailed, err))
	}

	a.toCache(hash, analysis)

	return analysis, nil
}

// fromCache возвращает nil при промахе или ошибке Redis.
func (a *AnalyzeUseCase) fromCache(ctx context.Context, hash string) *domain.Analysis {
	if a.cacheRepo == nil {
		return nil
	}

	analysis, err := a.cacheRepo.Get(ctx, hash)
	if err != nil {
		if !errors.Is(err, e.ErrCacheMiss) {
			a.logger.Warnf("Analysis cache read failed: %v", err)
		}
		metrics.AnalysisCacheMisses.Inc()
		return nil
	}

	metrics.AnalysisCacheHits.Inc()
	return analysis
}

// toCache сохраняет анализ в фоне
func (a *AnalyzeUseCase) toCache(hash string, analysis *domain.Analysis) {
	if a.cacheRepo == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := a.cacheRepo.Set(ctx, hash, analysis); err != nil {
			a.logger.Warnf("Failed to cache analysis: %v", err)
		}
	}()
}

func imageHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
