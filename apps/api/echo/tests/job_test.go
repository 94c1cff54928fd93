package tests

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type runCall struct {
	name   string
	orgIDs []string
}

type fakeJobs struct {
	calls []runCall
	err   error
}

func (j *fakeJobs) Jobs() []string { return []string{"reminders", "scoring"} }

func (j *fakeJobs) RunNow(_ context.Context, name string, orgIDs ...string) error {
	j.calls = append(j.calls, runCall{name: name, orgIDs: orgIDs})
	return j.err
}

func Test_jobApi(t *testing.T) {
	jobs := new(fakeJobs)
	f := setup(t, withJobs(jobs))
	adminToken := getToken(t, f.admin)

	tests := []httpTest{
		{name: "manager forbidden", method: http.MethodPost, path: "/api/jobs/reminders/run", token: getToken(t, f.manager), wantCode: http.StatusForbidden},
		{name: "list", method: http.MethodGet, path: "/api/jobs", token: adminToken, wantCode: http.StatusOK, wantData: []byte(`["reminders","scoring"]`)},
		{name: "unknown job", method: http.MethodPost, path: "/api/jobs/backup/run", token: adminToken, wantCode: http.StatusNotFound},
		{name: "run", method: http.MethodPost, path: "/api/jobs/reminders/run", token: adminToken, wantCode: http.StatusOK},
		{name: "other org", method: http.MethodPost, path: "/api/jobs/scoring/run", token: getToken(t, f.other), wantCode: http.StatusOK},
	}
	runHTTPTests(t, f, tests)

	assert.Equal(t, []runCall{
		{name: "reminders", orgIDs: []string{f.acme.ID}},
		{name: "scoring", orgIDs: []string{f.globex.ID}},
	}, jobs.calls)

	jobs.err = errors.New("boom")
	rec := f.do(http.MethodPost, "/api/jobs/scoring/run", adminToken)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func Test_jobApi_disabled(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodPost, "/api/jobs/reminders/run", getToken(t, f.admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
