package okr

import (
	"math"
	"time"
)

const (
	atRiskMargin   = 10.0
	offTrackMargin = 25.0
)

// KeyResultProgress returns how far kr went from its start value to its target, as a 0-100 percentage.
// Targets lower than the start value are supported.
func KeyResultProgress(kr KeyResult) float64 {
	if kr.MetricType == MetricBoolean {
		if kr.CurrentValue >= 1 {
			return 100
		}
		return 0
	}

	span := kr.TargetValue - kr.StartValue
	if span == 0 {
		if kr.CurrentValue >= kr.TargetValue {
			return 100
		}
		return 0
	}
	return round(clamp((kr.CurrentValue-kr.StartValue)/span*100, 0, 100), 2)
}

// ObjectiveProgress returns the weighted average progress of krs.
// An objective without key results has no progress; zero weights fall back to a plain average.
func ObjectiveProgress(krs []KeyResult) float64 {
	if len(krs) == 0 {
		return 0
	}

	var sum, weighted, weights float64
	for _, kr := range krs {
		p := KeyResultProgress(kr)
		sum += p
		if kr.Weight > 0 {
			weighted += p * kr.Weight
			weights += kr.Weight
		}
	}
	if weights == 0 {
		return round(sum/float64(len(krs)), 2)
	}
	return round(weighted/weights, 2)
}

// ExpectedProgress returns the percentage of the objective time span elapsed at now.
func ExpectedProgress(o Objective, now time.Time) float64 {
	total := o.EndDate.Sub(o.StartDate)
	if total <= 0 {
		return 100
	}
	return clamp(float64(now.Sub(o.StartDate))/float64(total)*100, 0, 100)
}

// Health compares the objective progress to the expected progress at now.
// Closed objectives have no health.
func Health(o Objective, now time.Time) string {
	if o.IsClosed() {
		return ""
	}
	gap := o.Progress - ExpectedProgress(o, now)
	switch {
	case gap >= -atRiskMargin:
		return HealthOnTrack
	case gap >= -offTrackMargin:
		return HealthAtRisk
	default:
		return HealthOffTrack
	}
}

// Score converts a progress percentage to the 0.0-1.0 OKR grading scale.
func Score(progress float64) float64 {
	return round(clamp(progress, 0, 100)/100, 1)
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
