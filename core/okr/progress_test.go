package okr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyResultProgress(t *testing.T) {
	tests := []struct {
		name string
		kr   KeyResult
		want float64
	}{
		{name: "not started", kr: KeyResult{MetricType: MetricNumber, StartValue: 0, TargetValue: 10, CurrentValue: 0}, want: 0},
		{name: "half way", kr: KeyResult{MetricType: MetricNumber, StartValue: 0, TargetValue: 10, CurrentValue: 5}, want: 50},
		{name: "offset start", kr: KeyResult{MetricType: MetricCurrency, StartValue: 100, TargetValue: 200, CurrentValue: 125}, want: 25},
		{name: "overachieved is capped", kr: KeyResult{MetricType: MetricNumber, StartValue: 0, TargetValue: 10, CurrentValue: 15}, want: 100},
		{name: "regressed is floored", kr: KeyResult{MetricType: MetricNumber, StartValue: 10, TargetValue: 20, CurrentValue: 5}, want: 0},
		{name: "decreasing target", kr: KeyResult{MetricType: MetricPercentage, StartValue: 40, TargetValue: 10, CurrentValue: 25}, want: 50},
		{name: "rounded", kr: KeyResult{MetricType: MetricNumber, StartValue: 0, TargetValue: 3, CurrentValue: 1}, want: 33.33},
		{name: "equal start & target reached", kr: KeyResult{MetricType: MetricNumber, StartValue: 5, TargetValue: 5, CurrentValue: 5}, want: 100},
		{name: "equal start & target not reached", kr: KeyResult{MetricType: MetricNumber, StartValue: 5, TargetValue: 5, CurrentValue: 4}, want: 0},
		{name: "boolean done", kr: KeyResult{MetricType: MetricBoolean, TargetValue: 1, CurrentValue: 1}, want: 100},
		{name: "boolean not done", kr: KeyResult{MetricType: MetricBoolean, TargetValue: 1, CurrentValue: 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyResultProgress(tt.kr))
		})
	}
}

func TestObjectiveProgress(t *testing.T) {
	kr := func(current, weight float64) KeyResult {
		return KeyResult{MetricType: MetricNumber, TargetValue: 100, CurrentValue: current, Weight: weight}
	}

	tests := []struct {
		name string
		krs  []KeyResult
		want float64
	}{
		{name: "no key results", want: 0},
		{name: "equal weights", krs: []KeyResult{kr(20, 1), kr(60, 1)}, want: 40},
		{name: "weighted", krs: []KeyResult{kr(100, 3), kr(0, 1)}, want: 75},
		{name: "zero weights fall back to mean", krs: []KeyResult{kr(30, 0), kr(60, 0)}, want: 45},
		{name: "zero weight ignored when others weigh", krs: []KeyResult{kr(100, 0), kr(50, 2)}, want: 50},
		{name: "rounded", krs: []KeyResult{kr(10, 1), kr(20, 1), kr(25, 1)}, want: 18.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectiveProgress(tt.krs))
		})
	}
}

func TestHealth(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 100)
	mid := start.AddDate(0, 0, 50) // 50% expected

	obj := func(progress float64, status string) Objective {
		return Objective{StartDate: start, EndDate: end, Progress: progress, Status: status}
	}

	tests := []struct {
		name string
		obj  Objective
		now  time.Time
		want string
	}{
		{name: "ahead", obj: obj(70, StatusActive), now: mid, want: HealthOnTrack},
		{name: "slightly behind", obj: obj(40, StatusActive), now: mid, want: HealthOnTrack},
		{name: "behind", obj: obj(30, StatusActive), now: mid, want: HealthAtRisk},
		{name: "far behind", obj: obj(20, StatusActive), now: mid, want: HealthOffTrack},
		{name: "before start", obj: obj(0, StatusActive), now: start.AddDate(0, 0, -5), want: HealthOnTrack},
		{name: "after end", obj: obj(80, StatusActive), now: end.AddDate(0, 0, 5), want: HealthAtRisk},
		{name: "completed has no health", obj: obj(20, StatusCompleted), now: mid, want: ""},
		{name: "cancelled has no health", obj: obj(20, StatusCancelled), now: mid, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Health(tt.obj, tt.now))
		})
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score(0))
	assert.Equal(t, 0.7, Score(68.5))
	assert.Equal(t, 1.0, Score(100))
	assert.Equal(t, 1.0, Score(140))
}

func TestPeriodBounds(t *testing.T) {
	start, end, ok := PeriodBounds("2026-Q4")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, ok = PeriodBounds("2026-Q5")
	assert.False(t, ok)

	assert.Equal(t, "2026-Q4", CurrentPeriod(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-Q1", CurrentPeriod(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
}
