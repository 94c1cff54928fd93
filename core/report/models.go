package report

import (
	"math"
	"time"

	"github.com/trezcool/kipimo/core/okr"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var AllFormats = []string{FormatCSV, FormatJSON, FormatYAML}

// Summary gives an overview of the objectives of an organization for a period.
type Summary struct {
	Period           string          `json:"period"`
	Objectives       int             `json:"objectives"`
	ByStatus         map[string]int  `json:"by_status"`
	ByHealth         map[string]int  `json:"by_health"`
	AverageProgress  float64         `json:"average_progress"`
	KeyResults       int             `json:"key_results"`
	ActiveKeyResults int             `json:"active_key_results"`
	Week             string          `json:"week"`
	CheckedIn        int             `json:"checked_in"`
	CheckInRate      float64         `json:"check_in_rate"` // percentage of active key results checked in on this week
	Teams            []GroupProgress `json:"teams"`
	Owners           []GroupProgress `json:"owners"`
}

// GroupProgress is the average progress of the objectives of a team or an owner.
type GroupProgress struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Objectives      int     `json:"objectives"`
	AverageProgress float64 `json:"average_progress"`
}

type exportDocument struct {
	Organization string            `json:"organization" yaml:"organization"`
	Period       string            `json:"period" yaml:"period"`
	GeneratedAt  time.Time         `json:"generated_at" yaml:"generated_at"`
	Objectives   []exportObjective `json:"objectives" yaml:"objectives"`
}

type exportObjective struct {
	ID         string            `json:"id" yaml:"id"`
	Title      string            `json:"title" yaml:"title"`
	Owner      string            `json:"owner" yaml:"owner"`
	Team       string            `json:"team,omitempty" yaml:"team,omitempty"`
	Status     string            `json:"status" yaml:"status"`
	StartDate  time.Time         `json:"start_date" yaml:"start_date"`
	EndDate    time.Time         `json:"end_date" yaml:"end_date"`
	Progress   float64           `json:"progress" yaml:"progress"`
	Score      *float64          `json:"score" yaml:"score"`
	Health     string            `json:"health,omitempty" yaml:"health,omitempty"`
	KeyResults []exportKeyResult `json:"key_results" yaml:"key_results"`
}

type exportKeyResult struct {
	ID           string  `json:"id" yaml:"id"`
	Title        string  `json:"title" yaml:"title"`
	Owner        string  `json:"owner" yaml:"owner"`
	MetricType   string  `json:"metric_type" yaml:"metric_type"`
	StartValue   float64 `json:"start_value" yaml:"start_value"`
	TargetValue  float64 `json:"target_value" yaml:"target_value"`
	CurrentValue float64 `json:"current_value" yaml:"current_value"`
	Weight       float64 `json:"weight" yaml:"weight"`
	Progress     float64 `json:"progress" yaml:"progress"`
	Confidence   *int    `json:"confidence" yaml:"confidence"`
}

var csvHeader = []string{
	"objective_id", "objective", "owner", "team", "status", "start_date", "end_date", "objective_progress", "score",
	"key_result_id", "key_result", "key_result_owner", "metric_type", "start_value", "target_value",
	"current_value", "weight", "key_result_progress", "confidence",
}

func averageProgress(objs []okr.Objective) float64 {
	var (
		sum float64
		n   int
	)
	for _, o := range objs {
		if o.Status == okr.StatusCancelled {
			continue
		}
		sum += o.Progress
		n++
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
