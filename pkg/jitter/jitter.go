// Package jitter добавляет случайность в интервалы отступления (backoff),
// чтобы повторные запросы к ML-сервису не приходили одновременно.
package jitter

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

var (
	globalRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	randMutex  sync.Mutex
)

// Duration возвращает продолжительность с применённым джиттером.
// Результат находится в диапазоне [d, d*(1+jitterFactor)].
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	randMutex.Lock()
	f := globalRand.Float64()
	randMutex.Unlock()

	return d + time.Duration(f*jitterFactor*float64(d))
}

// ExponentialBackoff вычисляет экспоненциальное отступление с джиттером.
// attempt нумеруется с нуля, результат без джиттера не превышает max.
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	return Duration(exponential(base, max, attempt), jitterFactor)
}

func exponential(base, max time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}

	return backoff
}

// Backoff — параметры повторов для внешних вызовов.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// NewBackoff возвращает Backoff с DefaultJitter.
func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, Factor: DefaultJitter}
}

// Wait ждёт интервал для попытки attempt или завершения контекста.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(ExponentialBackoff(b.Base, b.Max, attempt, b.Factor))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
