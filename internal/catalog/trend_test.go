package catalog

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTrendScorer_Score(t *testing.T) {
	now := time.Date(2025, time.June, 15, 13, 30, 0, 0, time.UTC)
	scorer := NewTrendScorer(WithClock(fixedClock(now)))

	day := func(offset int) string {
		return now.AddDate(0, 0, offset).Format("2006-01-02")
	}

	tests := []struct {
		name     string
		launchOn string
		lastSeen string
		discount float64
		want     float64
	}{
		{
			name:     "launched and seen today, full price",
			launchOn: day(0), lastSeen: day(0), discount: 0,
			want: 1.0,
		},
		{
			name:     "half-year-old launch, seen 30 days ago, 50% off",
			launchOn: day(-182), lastSeen: day(-30), discount: 50,
			// 0.4*(1-182/365) + 0.4*1 + 0.2*0.5
			want: 0.701,
		},
		{
			name:     "seen 31 days ago is not fresh",
			launchOn: day(0), lastSeen: day(-31), discount: 0,
			want: 0.6,
		},
		{
			name:     "launch older than a year floors recency at zero",
			launchOn: day(-800), lastSeen: day(-400), discount: 100,
			want: 0.0,
		},
		{
			name:     "exactly 365 days",
			launchOn: day(-365), lastSeen: day(0), discount: 20,
			want: 0.56,
		},
		{
			name:     "future launch is capped at full recency",
			launchOn: day(10), lastSeen: day(0), discount: 0,
			want: 1.0,
		},
		{
			name:     "discount above 100 is clamped",
			launchOn: day(0), lastSeen: day(0), discount: 150,
			want: 0.8,
		},
		{
			name:     "malformed launch date",
			launchOn: "bad-date", lastSeen: day(0), discount: 0,
			want: 0.0,
		},
		{
			name:     "malformed last seen date",
			launchOn: day(0), lastSeen: "15/06/2025", discount: 0,
			want: 0.0,
		},
		{
			name:     "empty dates",
			launchOn: "", lastSeen: "", discount: 10,
			want: 0.0,
		},
		{
			name:     "NaN discount",
			launchOn: day(0), lastSeen: day(0), discount: math.NaN(),
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.launchOn, tt.lastSeen, tt.discount)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%q, %q, %v) = %v, want %v", tt.launchOn, tt.lastSeen, tt.discount, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Score() = %v out of [0, 1]", got)
			}
		})
	}
}

func TestTrendScorer_DefaultClock(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	if got := NewTrendScorer().Score(today, today, 0); got != 1.0 {
		t.Errorf("Score(today, today, 0) = %v, want 1.0", got)
	}
}

func TestTrendScorer_ScoreAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	tests := []struct {
		name     string
		now      time.Time
		lastSeen string
		want     float64
	}{
		// весной сутки короче на час
		{"spring forward, 31 days", time.Date(2025, time.March, 10, 0, 30, 0, 0, ny), "2025-02-07", 0.0},
		{"spring forward, 30 days", time.Date(2025, time.March, 10, 0, 30, 0, 0, ny), "2025-02-08", 0.4},
		{"fall back, 30 days", time.Date(2025, time.November, 2, 23, 30, 0, 0, ny), "2025-10-03", 0.4},
		{"fall back, 31 days", time.Date(2025, time.November, 2, 23, 30, 0, 0, ny), "2025-10-02", 0.0},
		{"late evening keeps local date", time.Date(2025, time.June, 30, 23, 59, 0, 0, ny), "2025-05-31", 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := NewTrendScorer(WithClock(fixedClock(tt.now)))
			if got := scorer.Score("2020-01-01", tt.lastSeen, 100); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(lastSeen=%s) = %v, want %v", tt.lastSeen, got, tt.want)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		return d
	}

	if got := daysBetween(day("2025-03-10"), day("2025-02-07")); got != 31 {
		t.Errorf("daysBetween = %d, want 31", got)
	}
	if got := daysBetween(day("2025-01-01"), day("2025-01-11")); got != -10 {
		t.Errorf("daysBetween(future) = %d, want -10", got)
	}
}
