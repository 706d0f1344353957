package ml_service

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	fieldVector       = "vector"
	fieldModelVersion = "model_version"
)

// MLService клиент для взаимодействия с внешним ML-сервисом
type MLService struct {
	client     VectorizeClient
	sem        chan struct{}
	maxRetries int
	timeout    time.Duration
	backoff    jitter.Backoff
	logger     logger.Logger
}

func NewMLService(client VectorizeClient, maxConcurrent, maxRetries int, timeout time.Duration, logger logger.Logger) *MLService {
	const (
		baseJitter = 200 * time.Millisecond
		maxJitter  = 5 * time.Second
	)

	return &MLService{
		client:     client,
		sem:        make(chan struct{}, max(maxConcurrent, 1)),
		maxRetries: max(maxRetries, 1),
		timeout:    timeout,
		backoff:    jitter.NewBackoff(baseJitter, maxJitter),
		logger:     logger,
	}
}

// VectorizeImage выполняет векторизацию изображения с retry-логикой и экспоненциальной задержкой
func (m *MLService) VectorizeImage(ctx context.Context, req *usecase.VectorizeReq) (*usecase.VectorizeRes, error) {
	const op = "MLService.VectorizeImage"

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return nil, e.Wrap(op, ctx.Err())
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		res, err := m.vectorize(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		metrics.RecordExternalError("ml")

		if !retryable(err) || attempt == m.maxRetries-1 {
			break
		}

		m.logger.Warnf("vectorization failed, retrying (attempt %d): %v", attempt+1, err)
		if err := m.backoff.Wait(ctx, attempt); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("after %d attempt(s): %w", m.maxRetries, lastErr))
}

func (m *MLService) vectorize(ctx context.Context, req *usecase.VectorizeReq) (*usecase.VectorizeRes, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	res, err := m.client.VectorizeImage(ctx, wrapperspb.Bytes(req.Image.Data))
	if err != nil {
		return nil, err
	}

	return decodeVectorizeRes(res)
}

// decodeVectorizeRes разбирает ответ ML-сервиса.
func decodeVectorizeRes(res *structpb.Struct) (*usecase.VectorizeRes, error) {
	fields := res.GetFields()

	values := fields[fieldVector].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, e.ErrVectorEmbeddingEmpty
	}

	vector := make([]float32, len(values))
	for i, v := range values {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("vector[%d] is not a number: %w", i, e.ErrEmbeddingFailed)
		}
		vector[i] = float32(n.NumberValue)
	}

	return usecase.NewVectorizeRes(vector, fields[fieldModelVersion].GetStringValue()), nil
}

// retryable: повторяем только временные ошибки транспорта.
func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Unknown:
		return true
	default:
		return false
	}
}
