package org

import (
	"database/sql/driver"
	"encoding/json"
	"time"
	_ "time/tzdata" // embedded zoneinfo

	"github.com/pkg/errors"
)

// Jobs run by the scheduler. Their last run times are kept in Settings.LastRuns.
const (
	JobReminders = "reminders"
	JobScoring   = "scoring"
)

var AllJobs = []string{JobReminders, JobScoring}

// Settings is the per organization configuration, stored as a single JSON document.
type Settings struct {
	ReminderEnabled bool                 `json:"reminder_enabled"`
	ReminderWeekday time.Weekday         `json:"reminder_weekday"`
	ScoringEnabled  bool                 `json:"scoring_enabled"`
	Timezone        string               `json:"timezone"`
	LastRuns        map[string]time.Time `json:"last_runs,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		ReminderEnabled: true,
		ReminderWeekday: time.Monday,
		ScoringEnabled:  true,
		Timezone:        "UTC",
	}
}

func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Settings) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = DefaultSettings()
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into org.Settings", src)
	}

	*s = DefaultSettings()
	return errors.Wrap(json.Unmarshal(data, s), "unmarshalling settings")
}

// Location returns the organization timezone, UTC when unset or unknown.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s Settings) JobEnabled(job string) bool {
	switch job {
	case JobReminders:
		return s.ReminderEnabled
	case JobScoring:
		return s.ScoringEnabled
	}
	return false
}

// LastRun returns when job last ran, zero if never.
func (s Settings) LastRun(job string) time.Time {
	return s.LastRuns[job]
}

// Due reports whether job never ran or at least interval elapsed since its last run.
func (s Settings) Due(job string, interval time.Duration, now time.Time) bool {
	last, ok := s.LastRuns[job]
	if !ok || last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}

// MarkRun records that job ran at `at`.
func (s *Settings) MarkRun(job string, at time.Time) {
	runs := make(map[string]time.Time, len(s.LastRuns)+1)
	for k, v := range s.LastRuns {
		runs[k] = v
	}
	runs[job] = at.UTC()
	s.LastRuns = runs
}
