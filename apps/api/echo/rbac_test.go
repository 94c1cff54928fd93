package echoapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kipimo/core/user"
)

func Test_allowedRoles(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{path: "/api/users", want: adminOrManager},
		{path: "/api/users/roles", want: adminOrManager},
		{path: "/api/invitations/42", want: adminOrManager},
		{path: "/api/reports/export/email", want: adminOrManager},
		{path: "/api/org", want: nil},
		{path: "/api/org/settings", want: adminOnly},
		{path: "/api/org/settingsx", want: nil},
		{path: "/api/jobs/reminders/run", want: adminOnly},
		{path: "/api/objectives/1/key-results", want: nil},
		{path: "/api/me", want: nil},
		{path: "/api/usersx", want: nil},
		{path: "/api/unknown", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, allowedRoles(tt.path))
		})
	}
}

func Test_allowedRoles_everyRoleKnown(t *testing.T) {
	for _, rule := range routeRoles {
		for _, role := range rule.roles {
			assert.Contains(t, user.AllRoles, role, rule.prefix)
		}
	}
}

func Test_loginLimiter(t *testing.T) {
	l := newLoginLimiter(1, 2)
	now := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)

	assert.True(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now), "limits are per IP")
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Second)), "tokens refill")

	swept := now.Add(limiterIdleTTL + 2*time.Second)
	l.allow("10.0.0.3", swept)
	assert.Len(t, l.visitors, 1, "idle visitors are evicted")
	assert.Equal(t, swept, l.lastSweep)

	l.allow("10.0.0.4", swept.Add(time.Minute))
	assert.Len(t, l.visitors, 2)
	assert.Equal(t, swept, l.lastSweep, "no sweep before the idle TTL elapses")

	assert.Equal(t, 1, newLoginLimiter(1, 0).burst)
}
