package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/tests"
)

func Test_orgApi(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f.admin)
	employeeToken := getToken(t, f.employee)

	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/api/org", token: employeeToken, wantCode: http.StatusOK},
		{name: "employee cannot rename", method: http.MethodPut, path: "/api/org", body: []byte(`{"name":"Acme Corp"}`), token: employeeToken, wantCode: http.StatusForbidden},
		{name: "manager cannot rename", method: http.MethodPut, path: "/api/org", body: []byte(`{"name":"Acme Corp"}`), token: getToken(t, f.manager), wantCode: http.StatusForbidden},
		{name: "blank name", method: http.MethodPut, path: "/api/org", body: []byte(`{"name":"  "}`), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "employee cannot read settings", method: http.MethodGet, path: "/api/org/settings", token: employeeToken, wantCode: http.StatusForbidden},
		{name: "manager cannot update settings", method: http.MethodPut, path: "/api/org/settings", body: []byte(`{"scoring_enabled":false}`), token: getToken(t, f.manager), wantCode: http.StatusForbidden},
		{name: "invalid weekday", method: http.MethodPut, path: "/api/org/settings", body: []byte(`{"reminder_weekday":9}`), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "invalid timezone", method: http.MethodPut, path: "/api/org/settings", body: []byte(`{"timezone":"Mars/Olympus"}`), token: adminToken, wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, f, tests)

	t.Run("rename", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/api/org", adminToken, []byte(`{"name":" Acme Corp "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var o org.Organization
		unmarshal(t, rec, &o)
		assert.Equal(t, "Acme Corp", o.Name)
		assert.Equal(t, f.acme.Slug, o.Slug)
	})

	t.Run("settings", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/api/org/settings", adminToken, []byte(`{"reminder_weekday":5,"timezone":"Africa/Kinshasa"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		o, err := f.svcs.Orgs.GetByID(context.Background(), f.acme.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, int(o.Settings.ReminderWeekday))
		assert.Equal(t, "Africa/Kinshasa", o.Settings.Timezone)
		assert.Equal(t, org.DefaultSettings().ScoringEnabled, o.Settings.ScoringEnabled)
	})
}

func Test_orgApi_teams(t *testing.T) {
	f := setup(t)
	sales := testutil.CreateTeam(t, f.svcs.OrgRepo, f.acme.ID, "Sales")
	testutil.CreateTeam(t, f.svcs.OrgRepo, f.globex.ID, "Sales")
	managerToken := getToken(t, f.manager)
	employeeToken := getToken(t, f.employee)

	tests := []httpTest{
		{name: "employee cannot create", method: http.MethodPost, path: "/api/teams", body: []byte(`{"name":"Ops"}`), token: employeeToken, wantCode: http.StatusForbidden},
		{name: "duplicate name", method: http.MethodPost, path: "/api/teams", body: []byte(`{"name":"Sales"}`), token: managerToken, wantCode: http.StatusBadRequest},
		{name: "lead of another org", method: http.MethodPost, path: "/api/teams", body: []byte(`{"name":"Ops","lead_id":"` + f.other.ID + `"}`), token: managerToken, wantCode: http.StatusBadRequest},
		{name: "create", method: http.MethodPost, path: "/api/teams", body: []byte(`{"name":"Ops","lead_id":"` + f.manager.ID + `"}`), token: managerToken, wantCode: http.StatusCreated},
		{name: "retrieve", method: http.MethodGet, path: "/api/teams/" + sales.ID, token: employeeToken, wantCode: http.StatusOK},
		{name: "retrieve invalid id", method: http.MethodGet, path: "/api/teams/nope", token: employeeToken, wantCode: http.StatusNotFound},
		{name: "employee cannot update", method: http.MethodPut, path: "/api/teams/" + sales.ID, body: []byte(`{"name":"Sales EU"}`), token: employeeToken, wantCode: http.StatusForbidden},
		{name: "update", method: http.MethodPut, path: "/api/teams/" + sales.ID, body: []byte(`{"name":"Sales EU","lead_id":"` + f.employee.ID + `"}`), token: managerToken, wantCode: http.StatusOK},
		{name: "delete", method: http.MethodDelete, path: "/api/teams/" + sales.ID, token: managerToken, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodDelete, path: "/api/teams/" + sales.ID, token: managerToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, f, tests)

	rec := f.do(http.MethodGet, "/api/teams", employeeToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var teams []org.Team
	unmarshal(t, rec, &teams)
	require.Len(t, teams, 1)
	assert.Equal(t, "Ops", teams[0].Name)
	assert.Equal(t, f.manager.ID, teams[0].LeadID.String)
}
