package catalog

import (
	"math"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

const (
	recencyWeight   = 0.4
	freshnessWeight = 0.4
	discountWeight  = 0.2

	recencyHorizonDays = 365
	freshnessDays      = 30
)

// TrendScorer считает эвристический trend score товара по дате запуска, дате последнего появления и скидке.
//
// Формула:
//
//	recency   = max(0, 1 - days(today - launch_on) / 365)
//	freshness = 1, если days(today - last_seen_date) <= 30, иначе 0
//	discount  = 1 - discount / 100
//	trend     = 0.4*recency + 0.4*freshness + 0.2*discount
//
// recency дополнительно ограничен сверху единицей (запуск в будущем), скидка приводится к [0, 100],
// поэтому результат всегда в [0, 1]. Дни считаются по календарным датам, без учёта часового пояса.
//
// Любая ошибка разбора даты или некорректная скидка дают 0.0, ошибка наружу не пробрасывается.
type TrendScorer struct {
	now func() time.Time
}

// TrendOption настраивает TrendScorer.
type TrendOption func(*TrendScorer)

// WithClock подменяет источник текущего времени (для тестов).
func WithClock(now func() time.Time) TrendOption {
	return func(t *TrendScorer) {
		t.now = now
	}
}

func NewTrendScorer(opts ...TrendOption) *TrendScorer {
	t := &TrendScorer{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Score возвращает trend score в диапазоне [0, 1], округлённый до 3 знаков.
func (t *TrendScorer) Score(launchOn, lastSeenDate string, discount float64) float64 {
	now := t.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	launch, err := time.Parse(domain.DateLayout, launchOn)
	if err != nil {
		return 0.0
	}

	seen, err := time.Parse(domain.DateLayout, lastSeenDate)
	if err != nil {
		return 0.0
	}

	if math.IsNaN(discount) || math.IsInf(discount, 0) {
		return 0.0
	}

	recency := math.Max(0, 1-float64(daysBetween(today, launch))/recencyHorizonDays)
	recency = math.Min(recency, 1)

	freshness := 0.0
	if daysBetween(today, seen) <= freshnessDays {
		freshness = 1.0
	}

	discountPenalty := 1 - clamp(discount, 0, 100)/100

	score := recency*recencyWeight + freshness*freshnessWeight + discountPenalty*discountWeight

	return Round(score, 3)
}

// daysBetween возвращает разницу в календарных днях между полуночами UTC.
func daysBetween(to, from time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
