package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kipimo/apps/api/echo"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/tests"
)

func objectiveIDs(objs []okr.Objective) []string {
	ids := make([]string, 0, len(objs))
	for _, o := range objs {
		ids = append(ids, o.ID)
	}
	return ids
}

func Test_okrApi_objectives(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f.admin)
	managerToken := getToken(t, f.manager)
	employeeToken := getToken(t, f.employee)

	var created okr.Objective
	t.Run("create", func(t *testing.T) {
		tests := []httpTest{
			{name: "missing period", method: http.MethodPost, path: "/api/objectives", body: []byte(`{"title":"Grow"}`), token: employeeToken, wantCode: http.StatusBadRequest},
			{name: "invalid period", method: http.MethodPost, path: "/api/objectives", body: []byte(`{"title":"Grow","period":"2026-Q5"}`), token: employeeToken, wantCode: http.StatusBadRequest},
			{name: "employee for someone else", method: http.MethodPost, path: "/api/objectives", body: []byte(`{"title":"Grow","period":"2026-Q3","owner_id":"` + f.manager.ID + `"}`), token: employeeToken, wantCode: http.StatusForbidden},
			{name: "owner of another org", method: http.MethodPost, path: "/api/objectives", body: []byte(`{"title":"Grow","period":"2026-Q3","owner_id":"` + f.other.ID + `"}`), token: adminToken, wantCode: http.StatusBadRequest},
			{name: "dates out of order", method: http.MethodPost, path: "/api/objectives", body: []byte(`{"title":"Grow","period":"2026-Q3","start_date":"2026-09-01T00:00:00Z","end_date":"2026-08-01T00:00:00Z"}`), token: employeeToken, wantCode: http.StatusBadRequest},
		}
		runHTTPTests(t, f, tests)

		rec := f.do(http.MethodPost, "/api/objectives", managerToken, []byte(`{"title":" Grow revenue ","period":"2026-Q3","owner_id":"`+f.employee.ID+`"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &created)
		assert.Equal(t, "Grow revenue", created.Title)
		assert.Equal(t, f.employee.ID, created.OwnerID)
		assert.Equal(t, okr.StatusActive, created.Status)
		assert.Equal(t, "2026-07-01", created.StartDate.Format("2006-01-02"))
		assert.Equal(t, "2026-10-01", created.EndDate.Format("2006-01-02"))
		assert.Empty(t, created.KeyResults)
	})
	require.NotEmpty(t, created.ID)

	mine := testutil.CreateObjective(t, f.svcs.OKRRepo, f.admin, "Hire engineers", "2026-Q3")
	old := testutil.CreateObjective(t, f.svcs.OKRRepo, f.manager, "Launch beta", "2026-Q2")
	testutil.CreateObjective(t, f.svcs.OKRRepo, f.other, "Globex things", "2026-Q3")

	t.Run("query", func(t *testing.T) {
		tests := []struct {
			name  string
			query url.Values
			want  []string
		}{
			{name: "all", want: []string{created.ID, mine.ID, old.ID}},
			{name: "period", query: url.Values{"period": {"2026-Q3"}}, want: []string{created.ID, mine.ID}},
			{name: "owner", query: url.Values{"owner_id": {f.employee.ID}}, want: []string{created.ID}},
			{name: "search", query: url.Values{"search": {"HIRE"}}, want: []string{mine.ID}},
			{name: "status", query: url.Values{"status": {okr.StatusDraft, okr.StatusCompleted}}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(http.MethodGet, "/api/objectives?"+tt.query.Encode(), employeeToken)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var objs []okr.Objective
				unmarshal(t, rec, &objs)
				assert.ElementsMatch(t, tt.want, objectiveIDs(objs))
			})
		}

		rec := f.do(http.MethodGet, "/api/objectives?ordering=title", employeeToken)
		var objs []okr.Objective
		unmarshal(t, rec, &objs)
		assert.Equal(t, []string{created.ID, mine.ID, old.ID}, objectiveIDs(objs))
	})

	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/api/objectives/" + mine.ID, token: employeeToken, wantCode: http.StatusOK},
		{name: "retrieve invalid id", method: http.MethodGet, path: "/api/objectives/42", token: employeeToken, wantCode: http.StatusNotFound},
		{name: "employee cannot edit others", method: http.MethodPut, path: "/api/objectives/" + mine.ID, body: []byte(`{"title":"Mine"}`), token: employeeToken, wantCode: http.StatusForbidden},
		{name: "owner edits", method: http.MethodPut, path: "/api/objectives/" + created.ID, body: []byte(`{"title":"Grow ARR"}`), token: employeeToken, wantCode: http.StatusOK},
		{name: "invalid status", method: http.MethodPut, path: "/api/objectives/" + created.ID, body: []byte(`{"status":"done"}`), token: employeeToken, wantCode: http.StatusBadRequest},
		{name: "self parent", method: http.MethodPut, path: "/api/objectives/" + created.ID, body: []byte(`{"parent_id":"` + created.ID + `"}`), token: managerToken, wantCode: http.StatusBadRequest},
		{name: "align", method: http.MethodPut, path: "/api/objectives/" + created.ID, body: []byte(`{"parent_id":"` + mine.ID + `"}`), token: managerToken, wantCode: http.StatusOK},
		{name: "cycle", method: http.MethodPut, path: "/api/objectives/" + mine.ID, body: []byte(`{"parent_id":"` + created.ID + `"}`), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "other org cannot see", method: http.MethodGet, path: "/api/objectives/" + mine.ID, token: getToken(t, f.other), wantCode: http.StatusNotFound},
		{name: "employee cannot delete others", method: http.MethodDelete, path: "/api/objectives/" + old.ID, token: employeeToken, wantCode: http.StatusForbidden},
		{name: "manager deletes", method: http.MethodDelete, path: "/api/objectives/" + old.ID, token: managerToken, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: "/api/objectives/" + old.ID, token: managerToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, f, tests)
}

func Test_okrApi_keyResultsAndCheckIns(t *testing.T) {
	f := setup(t)
	employeeToken := getToken(t, f.employee)
	managerToken := getToken(t, f.manager)

	obj := testutil.CreateObjective(t, f.svcs.OKRRepo, f.manager, "Grow revenue", okr.CurrentPeriod(okr.NowFunc()))
	other := testutil.CreateObjective(t, f.svcs.OKRRepo, f.admin, "Hire", okr.CurrentPeriod(okr.NowFunc()))
	otherKR := testutil.CreateKeyResult(t, f.svcs.OKRRepo, other, "Engineers", 0, 10, 0, 1)

	var deals, arr okr.KeyResult
	t.Run("add key results", func(t *testing.T) {
		tests := []httpTest{
			{name: "employee cannot add", method: http.MethodPost, path: "/api/objectives/" + obj.ID + "/key-results", body: []byte(`{"title":"Deals","metric_type":"number","target_value":10}`), token: employeeToken, wantCode: http.StatusForbidden},
			{name: "missing target", method: http.MethodPost, path: "/api/objectives/" + obj.ID + "/key-results", body: []byte(`{"title":"Deals","metric_type":"number"}`), token: managerToken, wantCode: http.StatusBadRequest},
			{name: "invalid metric", method: http.MethodPost, path: "/api/objectives/" + obj.ID + "/key-results", body: []byte(`{"title":"Deals","metric_type":"vibes","target_value":10}`), token: managerToken, wantCode: http.StatusBadRequest},
			{name: "invalid weight", method: http.MethodPost, path: "/api/objectives/" + obj.ID + "/key-results", body: []byte(`{"title":"Deals","metric_type":"number","target_value":10,"weight":0}`), token: managerToken, wantCode: http.StatusBadRequest},
		}
		runHTTPTests(t, f, tests)

		rec := f.do(http.MethodPost, "/api/objectives/"+obj.ID+"/key-results", managerToken,
			[]byte(`{"title":"Deals","metric_type":"number","target_value":10,"weight":3,"owner_id":"`+f.employee.ID+`"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &deals)
		assert.Equal(t, f.employee.ID, deals.OwnerID)
		assert.Equal(t, 3.0, deals.Weight)

		rec = f.do(http.MethodPost, "/api/objectives/"+obj.ID+"/key-results", managerToken,
			[]byte(`{"title":"ARR","metric_type":"percentage","start_value":0,"target_value":100}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &arr)
		assert.Equal(t, 1.0, arr.Weight)
	})

	t.Run("check in", func(t *testing.T) {
		tests := []httpTest{
			{name: "missing value", method: http.MethodPost, path: "/api/key-results/" + deals.ID + "/checkins", body: []byte(`{"confidence":7}`), token: employeeToken, wantCode: http.StatusBadRequest},
			{name: "confidence out of range", method: http.MethodPost, path: "/api/key-results/" + deals.ID + "/checkins", body: []byte(`{"value":4,"confidence":11}`), token: employeeToken, wantCode: http.StatusBadRequest},
			{name: "not the owner", method: http.MethodPost, path: "/api/key-results/" + otherKR.ID + "/checkins", body: []byte(`{"value":4,"confidence":7}`), token: employeeToken, wantCode: http.StatusForbidden},
			{name: "unknown key result", method: http.MethodPost, path: "/api/key-results/nope/checkins", body: []byte(`{"value":4,"confidence":7}`), token: employeeToken, wantCode: http.StatusNotFound},
		}
		runHTTPTests(t, f, tests)

		rec := f.do(http.MethodPost, "/api/key-results/"+deals.ID+"/checkins", employeeToken, []byte(`{"value":4,"confidence":7,"comment":" two big ones "}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var ci checkin.CheckIn
		unmarshal(t, rec, &ci)
		assert.Equal(t, 4.0, ci.Value)
		assert.Equal(t, "two big ones", ci.Comment)
		assert.Equal(t, f.employee.ID, ci.UserID)

		rec = f.do(http.MethodGet, "/api/key-results/"+deals.ID, employeeToken)
		var kr okr.KeyResult
		unmarshal(t, rec, &kr)
		assert.Equal(t, 4.0, kr.CurrentValue)
		assert.Equal(t, 40.0, kr.Progress)
		assert.Equal(t, 7, kr.Confidence.Int)

		// (40*3 + 0*1) / 4
		rec = f.do(http.MethodGet, "/api/objectives/"+obj.ID, employeeToken)
		var o okr.Objective
		unmarshal(t, rec, &o)
		assert.Equal(t, 30.0, o.Progress)
		assert.Len(t, o.KeyResults, 2)

		rec = f.do(http.MethodGet, "/api/key-results/"+deals.ID+"/checkins", managerToken)
		var cis []checkin.CheckIn
		unmarshal(t, rec, &cis)
		require.Len(t, cis, 1)
		assert.Equal(t, ci.ID, cis[0].ID)

		rec = f.do(http.MethodGet, "/api/checkins", managerToken)
		var week CheckInsResponse
		unmarshal(t, rec, &week)
		assert.Equal(t, ci.Week, week.Week)
		assert.Len(t, week.CheckIns, 1)

		rec = f.do(http.MethodGet, "/api/checkins?week=2020-W01", managerToken)
		unmarshal(t, rec, &week)
		assert.Equal(t, "2020-W01", week.Week)
		assert.Empty(t, week.CheckIns)
	})

	t.Run("update & delete key results", func(t *testing.T) {
		tests := []httpTest{
			{name: "key result owner edits", method: http.MethodPut, path: "/api/key-results/" + deals.ID, body: []byte(`{"title":"Closed deals"}`), token: employeeToken, wantCode: http.StatusOK},
			{name: "employee cannot edit others", method: http.MethodPut, path: "/api/key-results/" + arr.ID, body: []byte(`{"title":"MRR"}`), token: employeeToken, wantCode: http.StatusForbidden},
			{name: "invalid weight", method: http.MethodPut, path: "/api/key-results/" + arr.ID, body: []byte(`{"weight":-1}`), token: managerToken, wantCode: http.StatusBadRequest},
			{name: "delete", method: http.MethodDelete, path: "/api/key-results/" + arr.ID, token: managerToken, wantCode: http.StatusNoContent},
			{name: "deleted", method: http.MethodGet, path: "/api/key-results/" + arr.ID, token: managerToken, wantCode: http.StatusNotFound},
		}
		runHTTPTests(t, f, tests)

		rec := f.do(http.MethodGet, "/api/objectives/"+obj.ID, employeeToken)
		var o okr.Objective
		unmarshal(t, rec, &o)
		assert.Equal(t, 40.0, o.Progress)
	})
}

func Test_notificationApi(t *testing.T) {
	f := setup(t)
	managerToken := getToken(t, f.manager)
	employeeToken := getToken(t, f.employee)

	for _, title := range []string{"Grow", "Hire"} {
		rec := f.do(http.MethodPost, "/api/objectives", managerToken, []byte(`{"title":"`+title+`","period":"2026-Q3","owner_id":"`+f.employee.ID+`"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var count notification.UnreadCount
	unmarshal(t, f.do(http.MethodGet, "/api/notifications/unread-count", employeeToken), &count)
	assert.Equal(t, 2, count.Count)
	unmarshal(t, f.do(http.MethodGet, "/api/notifications/unread-count", managerToken), &count)
	assert.Equal(t, 0, count.Count)

	var notifs []notification.Notification
	unmarshal(t, f.do(http.MethodGet, "/api/notifications?limit=1", employeeToken), &notifs)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.KindObjectiveAssigned, notifs[0].Kind)

	tests := []httpTest{
		{name: "someone else's", method: http.MethodPost, path: "/api/notifications/" + notifs[0].ID + "/read", token: managerToken, wantCode: http.StatusNotFound},
		{name: "invalid id", method: http.MethodPost, path: "/api/notifications/nope/read", token: employeeToken, wantCode: http.StatusNotFound},
		{name: "mark read", method: http.MethodPost, path: "/api/notifications/" + notifs[0].ID + "/read", token: employeeToken, wantCode: http.StatusOK},
	}
	runHTTPTests(t, f, tests)

	unmarshal(t, f.do(http.MethodGet, "/api/notifications?unread=true", employeeToken), &notifs)
	assert.Len(t, notifs, 1)

	rec := f.do(http.MethodPost, "/api/notifications/read-all", employeeToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	unmarshal(t, f.do(http.MethodGet, "/api/notifications/unread-count", employeeToken), &count)
	assert.Equal(t, 0, count.Count)
	unmarshal(t, f.do(http.MethodGet, "/api/notifications", employeeToken), &notifs)
	assert.Len(t, notifs, 2)
}
