package domain

import "time"

// SearchEventKind задаёт тип события поиска.
type SearchEventKind string

const (
	SearchEventImage     SearchEventKind = "image_search"
	SearchEventRecommend SearchEventKind = "recommendation"
	SearchEventSimilar   SearchEventKind = "similar"
)

// SearchEvent фиксирует обслуженный запрос для аналитики.
type SearchEvent struct {
	ID         string
	Kind       SearchEventKind
	QueryIDs   []string // история или исходный товар; пусто для поиска по изображению
	ResultIDs  []string
	OccurredAt time.Time
}

func NewSearchEvent(id string, kind SearchEventKind, queryIDs, resultIDs []string, occurredAt time.Time) *SearchEvent {
	return &SearchEvent{
		ID:         id,
		Kind:       kind,
		QueryIDs:   queryIDs,
		ResultIDs:  resultIDs,
		OccurredAt: occurredAt,
	}
}
