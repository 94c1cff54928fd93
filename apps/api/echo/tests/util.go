package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kipimo/apps/api/echo"
	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
	metricsvc "github.com/trezcool/kipimo/services/metrics"
	"github.com/trezcool/kipimo/tests"
)

const pwd = "Tr0ub4dor&3x"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	svcs     *testutil.Services
	app      *Server
	acme     org.Organization
	globex   org.Organization
	admin    user.User
	manager  user.User
	employee user.User
	inactive user.User
	other    user.User // admin of another organization
}

type setupOption func(deps *ServerDeps)

func withJobs(jobs JobRunner) setupOption {
	return func(deps *ServerDeps) { deps.Jobs = jobs }
}

func withConf(conf *core.Config) setupOption {
	return func(deps *ServerDeps) { deps.Conf = conf }
}

func setup(t *testing.T, opts ...setupOption) fixture {
	svcs := testutil.NewServices(t)
	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")
	globex := testutil.CreateOrg(t, svcs.OrgRepo, "Globex")

	deps := ServerDeps{
		Conf:            core.Conf,
		Logger:          svcs.Logger,
		Metrics:         metricsvc.New(),
		DisableReqLogs:  true,
		UserSvc:         svcs.Users,
		OrgSvc:          svcs.Orgs,
		OKRSvc:          svcs.OKRs,
		CheckInSvc:      svcs.CheckIns,
		NotificationSvc: svcs.Notifications,
		InvitationSvc:   svcs.Invitations,
		ReportSvc:       svcs.Reports,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	app := NewServer(deps)
	t.Cleanup(func() { _ = app.Close() })

	return fixture{
		svcs:     svcs,
		app:      app,
		acme:     acme,
		globex:   globex,
		admin:    testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Ada", "ada@acme.io", pwd, user.RoleAdmin, true),
		manager:  testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Max", "max@acme.io", pwd, user.RoleManager, true),
		employee: testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Eve", "eve@acme.io", pwd, user.RoleEmployee, true),
		inactive: testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Ian", "ian@acme.io", pwd, user.RoleEmployee, false),
		other:    testutil.CreateUser(t, svcs.UserRepo, globex.ID, "Otto", "otto@globex.io", pwd, user.RoleAdmin, true),
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a request on app & returns the recorded response.
func (f fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
