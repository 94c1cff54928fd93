package main

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
	"github.com/trezcool/kipimo/tests"
)

const pwd = "Tr0ub4dor&3x"

type runCall struct {
	name   string
	orgIDs []string
}

type fakeJobs struct {
	calls []runCall
}

func (j *fakeJobs) Jobs() []string { return []string{"reminders", "scoring"} }

func (j *fakeJobs) RunNow(_ context.Context, name string, orgIDs ...string) error {
	if name != "reminders" && name != "scoring" {
		return errors.New("unknown job")
	}
	j.calls = append(j.calls, runCall{name: name, orgIDs: orgIDs})
	return nil
}

func setup(t *testing.T) (*commandLine, *testutil.Services, *fakeJobs) {
	svcs := testutil.NewServices(t)
	jobs := new(fakeJobs)
	return &commandLine{usrSvc: svcs.Users, orgSvc: svcs.Orgs, jobs: jobs}, svcs, jobs
}

// withPassword makes the next prompts read pwd.
func withPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr bool
	errIs   error
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.errIs != nil:
				assert.ErrorIs(t, err, tt.errIs)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, _ := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", errIs: errHelp},
		{name: "unknown command", args: []string{"lol"}, errIs: errHelp},
		{name: "migrate without command", args: []string{"migrate"}, errIs: errHelp},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	var got []string
	orig := runMigrationsFunc
	runMigrationsFunc = func(_ *sqlx.DB, command string, args ...string) error {
		got = append([]string{command}, args...)
		if command == "nope" {
			return errors.New(`"nope": no such command`)
		}
		return nil
	}
	t.Cleanup(func() { runMigrationsFunc = orig })

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "2"}))
	assert.Equal(t, []string{"up-to", "2"}, got)

	require.NoError(t, cli.run([]string{"admin", "migrate", "status"}))
	assert.Equal(t, []string{"status"}, got)

	assert.EqualError(t, cli.run([]string{"admin", "migrate", "nope"}), `"nope": no such command`)
}

func Test_commandLine_createOrg(t *testing.T) {
	cli, svcs, _ := setup(t)
	ctx := context.Background()

	runCLITests(t, cli, []cliTest{
		{name: "missing flags", args: []string{"createorg", "-name", "Acme"}, pwd: pwd, errIs: errHelp},
		{name: "no password", args: []string{"createorg", "-name", "Acme", "-admin", "Ada", "-email", "ada@acme.io"}, errIs: errHelp},
		{name: "weak password", args: []string{"createorg", "-name", "Acme", "-admin", "Ada", "-email", "ada@acme.io"}, pwd: "password", wantErr: true},
		{name: "create", args: []string{"createorg", "-name", "Acme Corp", "-admin", "Ada", "-email", "Ada@Acme.io"}, pwd: pwd},
		{name: "email taken", args: []string{"createorg", "-name", "Acme 2", "-admin", "Ada", "-email", "ada@acme.io"}, pwd: pwd, wantErr: true},
	})

	o, err := svcs.Orgs.GetBySlug(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", o.Name)

	usr, err := svcs.Users.GetByEmail(ctx, "ada@acme.io")
	require.NoError(t, err)
	assert.Equal(t, o.ID, usr.OrgID)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.NoError(t, usr.CheckPassword(pwd))
}

func Test_commandLine_addUser(t *testing.T) {
	cli, svcs, _ := setup(t)
	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")

	runCLITests(t, cli, []cliTest{
		{name: "missing flags", args: []string{"adduser", "-org", "acme"}, pwd: pwd, errIs: errHelp},
		{name: "org not found", args: []string{"adduser", "-org", "globex", "-name", "Eve", "-email", "eve@acme.io"}, pwd: pwd, errIs: org.ErrNotFound},
		{name: "invalid role", args: []string{"adduser", "-org", "acme", "-name", "Eve", "-email", "eve@acme.io", "-role", "boss"}, pwd: pwd, wantErr: true},
		{name: "employee by default", args: []string{"adduser", "-org", "acme", "-name", "Eve", "-email", "eve@acme.io"}, pwd: pwd},
		{name: "manager", args: []string{"adduser", "-org", "acme", "-name", "Max", "-email", "max@acme.io", "-role", "manager"}, pwd: pwd},
	})

	eve, err := svcs.Users.GetByEmail(context.Background(), "eve@acme.io")
	require.NoError(t, err)
	assert.Equal(t, acme.ID, eve.OrgID)
	assert.Equal(t, user.RoleEmployee, eve.Role)
	assert.True(t, eve.IsActive)

	mgr, err := svcs.Users.GetByEmail(context.Background(), "max@acme.io")
	require.NoError(t, err)
	assert.Equal(t, user.RoleManager, mgr.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, svcs, _ := setup(t)
	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")
	usr := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Eve", "eve@acme.io", "mdr-Lol-42!", user.RoleEmployee, true)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, errIs: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "eve@acme.io"}, errIs: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@acme.io"}, pwd: pwd, errIs: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-email", "eve@acme.io"}, pwd: "12345678", wantErr: true},
		{name: "reset", args: []string{"resetpassword", "-email", "EVE@acme.io"}, pwd: pwd},
	})

	refreshed, err := svcs.Users.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NotEqual(t, usr.PasswordHash, refreshed.PasswordHash)
	assert.NoError(t, refreshed.CheckPassword(pwd))
}

func Test_commandLine_runJob(t *testing.T) {
	cli, svcs, jobs := setup(t)
	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")

	runCLITests(t, cli, []cliTest{
		{name: "no job", args: []string{"runjob"}, errIs: errHelp},
		{name: "unknown org", args: []string{"runjob", "-job", "reminders", "-org", "globex"}, errIs: org.ErrNotFound},
		{name: "unknown job", args: []string{"runjob", "-job", "backup"}, wantErr: true},
		{name: "all orgs", args: []string{"runjob", "-job", "scoring"}},
		{name: "one org", args: []string{"runjob", "-job", "reminders", "-org", "acme"}},
	})

	assert.Equal(t, []runCall{
		{name: "scoring"},
		{name: "reminders", orgIDs: []string{acme.ID}},
	}, jobs.calls)
}
