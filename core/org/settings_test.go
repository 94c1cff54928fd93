package org

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_Due(t *testing.T) {
	now := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	s := DefaultSettings()
	s.MarkRun(JobScoring, now.Add(-30*time.Minute))
	s.MarkRun(JobReminders, now.Add(-25*time.Hour))

	tests := []struct {
		name     string
		job      string
		interval time.Duration
		want     bool
	}{
		{name: "never ran", job: "unknown", interval: time.Hour, want: true},
		{name: "interval not elapsed", job: JobScoring, interval: time.Hour, want: false},
		{name: "interval elapsed exactly", job: JobScoring, interval: 30 * time.Minute, want: true},
		{name: "interval elapsed", job: JobReminders, interval: 24 * time.Hour, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Due(tt.job, tt.interval, now))
		})
	}
}

func TestSettings_MarkRunDoesNotShareMap(t *testing.T) {
	s := DefaultSettings()
	s.MarkRun(JobScoring, time.Now())
	cp := s
	cp.MarkRun(JobReminders, time.Now())

	assert.Len(t, s.LastRuns, 1)
	assert.Len(t, cp.LastRuns, 2)
}

func TestSettings_ValueScan(t *testing.T) {
	at := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	s := DefaultSettings()
	s.Timezone = "Africa/Kinshasa"
	s.MarkRun(JobReminders, at)

	val, err := s.Value()
	require.NoError(t, err)

	var scanned Settings
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, "Africa/Kinshasa", scanned.Timezone)
	assert.True(t, scanned.LastRun(JobReminders).Equal(at))
	assert.Equal(t, "Africa/Kinshasa", scanned.Location().String())

	// missing keys fall back to defaults
	var partial Settings
	require.NoError(t, partial.Scan([]byte(`{"scoring_enabled": false}`)))
	assert.False(t, partial.ScoringEnabled)
	assert.True(t, partial.ReminderEnabled)
	assert.Equal(t, time.Monday, partial.ReminderWeekday)

	assert.Error(t, partial.Scan(42))
}

func TestUpdateSettings_Validate(t *testing.T) {
	bad := "Mars/Olympus"
	day := 9
	assert.Error(t, UpdateSettings{Timezone: &bad}.Validate())
	assert.Error(t, UpdateSettings{ReminderWeekday: &day}.Validate())

	good := "Europe/Paris"
	assert.NoError(t, UpdateSettings{Timezone: &good}.Validate())
}
