package okr

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
)

// Objective statuses
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Key result metric types
const (
	MetricPercentage = "percentage"
	MetricNumber     = "number"
	MetricCurrency   = "currency"
	MetricBoolean    = "boolean"
)

// Health of an objective compared to the time elapsed in its period
const (
	HealthOnTrack  = "on_track"
	HealthAtRisk   = "at_risk"
	HealthOffTrack = "off_track"
)

var (
	AllStatuses    = []string{StatusDraft, StatusActive, StatusCompleted, StatusCancelled}
	AllMetricTypes = []string{MetricPercentage, MetricNumber, MetricCurrency, MetricBoolean}
	AllHealths     = []string{HealthOnTrack, HealthAtRisk, HealthOffTrack}

	OrderingFields = []string{"created_at", "title", "progress", "end_date", "status"}

	statusTag  = "objstatus"
	statusText = "invalid status"
	metricTag  = "metric"
	metricText = "invalid metric type"
)

func init() {
	_ = core.Validate.RegisterValidation(statusTag, oneOfValidation(AllStatuses))
	core.RegisterCustomTranslation(core.Validate, core.Translator, statusTag, statusText)
	_ = core.Validate.RegisterValidation(metricTag, oneOfValidation(AllMetricTypes))
	core.RegisterCustomTranslation(core.Validate, core.Translator, metricTag, metricText)
}

func oneOfValidation(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return core.StringInSlice(fl.Field().String(), values)
	}
}

type Objective struct {
	ID          string       `json:"id" db:"id"`
	OrgID       string       `json:"org_id" db:"org_id"`
	OwnerID     string       `json:"owner_id" db:"owner_id"`
	TeamID      null.String  `json:"team_id" db:"team_id"`
	ParentID    null.String  `json:"parent_id" db:"parent_id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Period      string       `json:"period" db:"period"`
	StartDate   time.Time    `json:"start_date" db:"start_date"`
	EndDate     time.Time    `json:"end_date" db:"end_date"`
	Status      string       `json:"status" db:"status"`
	Progress    float64      `json:"progress" db:"progress"`
	Score       null.Float64 `json:"score" db:"score"`
	Health      string       `json:"health,omitempty" db:"-"`
	KeyResults  []KeyResult  `json:"key_results" db:"-"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

func (o Objective) IsClosed() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}

type KeyResult struct {
	ID           string    `json:"id" db:"id"`
	OrgID        string    `json:"org_id" db:"org_id"`
	ObjectiveID  string    `json:"objective_id" db:"objective_id"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	Title        string    `json:"title" db:"title"`
	MetricType   string    `json:"metric_type" db:"metric_type"`
	StartValue   float64   `json:"start_value" db:"start_value"`
	TargetValue  float64   `json:"target_value" db:"target_value"`
	CurrentValue float64   `json:"current_value" db:"current_value"`
	Weight       float64   `json:"weight" db:"weight"`
	Progress     float64   `json:"progress" db:"progress"`
	Confidence   null.Int  `json:"confidence" db:"confidence"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NewObjective contains information needed to create a new Objective.
// StartDate & EndDate default to the bounds of Period.
type NewObjective struct {
	Title       string     `json:"title" validate:"required,notblank,max=255"`
	Description string     `json:"description" validate:"max=5000"`
	Period      string     `json:"period" validate:"required,period"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Status      string     `json:"status" validate:"omitempty,objstatus"`
	OwnerID     string     `json:"owner_id" validate:"omitempty,uuid"`
	TeamID      string     `json:"team_id" validate:"omitempty,uuid"`
	ParentID    string     `json:"parent_id" validate:"omitempty,uuid"`
}

func (no *NewObjective) Validate() error {
	no.Title = core.CleanString(no.Title)
	no.Description = core.CleanString(no.Description)
	no.Period = core.CleanString(no.Period)
	if err := core.Validate.Struct(no); err != nil {
		return err
	}

	start, end, _ := PeriodBounds(no.Period)
	if no.StartDate == nil {
		no.StartDate = &start
	}
	if no.EndDate == nil {
		no.EndDate = &end
	}
	return validateDates(*no.StartDate, *no.EndDate)
}

// UpdateObjective defines what information may be provided to modify an existing Objective.
type UpdateObjective struct {
	Title       string     `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Period      string     `json:"period" validate:"omitempty,period"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Status      string     `json:"status" validate:"omitempty,objstatus"`
	OwnerID     string     `json:"owner_id" validate:"omitempty,uuid"`
	TeamID      *string    `json:"team_id"`   // "" removes the team
	ParentID    *string    `json:"parent_id"` // "" removes the parent
}

func (uo *UpdateObjective) Validate(orig Objective) error {
	uo.Title = core.CleanString(uo.Title)
	if err := core.Validate.Struct(uo); err != nil {
		return err
	}

	start, end := orig.StartDate, orig.EndDate
	if uo.Period != "" && uo.Period != orig.Period && uo.StartDate == nil && uo.EndDate == nil {
		start, end, _ = PeriodBounds(uo.Period)
		uo.StartDate, uo.EndDate = &start, &end
	}
	if uo.StartDate != nil {
		start = *uo.StartDate
	}
	if uo.EndDate != nil {
		end = *uo.EndDate
	}
	return validateDates(start, end)
}

func validateDates(start, end time.Time) error {
	if !end.After(start) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end_date must be after start_date"})
	}
	return nil
}

// NewKeyResult contains information needed to create a new KeyResult.
type NewKeyResult struct {
	Title       string   `json:"title" validate:"required,notblank,max=255"`
	MetricType  string   `json:"metric_type" validate:"required,metric"`
	StartValue  float64  `json:"start_value"`
	TargetValue *float64 `json:"target_value" validate:"required"`
	Weight      *float64 `json:"weight" validate:"omitempty,gt=0"`
	OwnerID     string   `json:"owner_id" validate:"omitempty,uuid"`
}

func (nkr *NewKeyResult) Validate() error {
	nkr.Title = core.CleanString(nkr.Title)
	if nkr.MetricType == MetricBoolean && nkr.TargetValue == nil {
		one := 1.0
		nkr.TargetValue = &one
	}
	return core.Validate.Struct(nkr)
}

// UpdateKeyResult defines what information may be provided to modify an existing KeyResult.
type UpdateKeyResult struct {
	Title       string   `json:"title" validate:"omitempty,notblank,max=255"`
	MetricType  string   `json:"metric_type" validate:"omitempty,metric"`
	StartValue  *float64 `json:"start_value"`
	TargetValue *float64 `json:"target_value"`
	Weight      *float64 `json:"weight" validate:"omitempty,gt=0"`
	OwnerID     string   `json:"owner_id" validate:"omitempty,uuid"`
}

func (ukr *UpdateKeyResult) Validate() error {
	ukr.Title = core.CleanString(ukr.Title)
	return core.Validate.Struct(ukr)
}

type QueryFilter struct {
	Search   string
	OwnerID  string
	TeamID   string
	Period   string
	Statuses []string
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Period = core.CleanString(qf.Period)
}

// PeriodBounds returns the UTC start & end instants of a "YYYY-Qn" period.
func PeriodBounds(period string) (time.Time, time.Time, bool) {
	m := core.PeriodRegex.FindStringSubmatch(period)
	if m == nil {
		return time.Time{}, time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	quarter, _ := strconv.Atoi(m[2])
	start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 3, 0), true
}

// CurrentPeriod returns the period t falls in.
func CurrentPeriod(t time.Time) string {
	return strconv.Itoa(t.Year()) + "-Q" + strconv.Itoa((int(t.Month())-1)/3+1)
}
