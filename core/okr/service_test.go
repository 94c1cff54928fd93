package okr_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/user"
	"github.com/trezcool/kipimo/tests"
)

type fixture struct {
	svcs     *testutil.Services
	admin    user.User
	manager  user.User
	employee user.User
	other    user.User // another organization
}

func setup(t *testing.T) fixture {
	svcs := testutil.NewServices(t)
	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")
	globex := testutil.CreateOrg(t, svcs.OrgRepo, "Globex")
	return fixture{
		svcs:     svcs,
		admin:    testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Ada Admin", "ada@acme.io", "", user.RoleAdmin, true),
		manager:  testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Max Manager", "max@acme.io", "", user.RoleManager, true),
		employee: testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Eve Employee", "eve@acme.io", "", user.RoleEmployee, true),
		other:    testutil.CreateUser(t, svcs.UserRepo, globex.ID, "Otto Other", "otto@globex.io", "", user.RoleAdmin, true),
	}
}

func newObjective(t *testing.T, title, ownerID string) okr.NewObjective {
	no := okr.NewObjective{Title: title, Period: "2026-Q3", OwnerID: ownerID}
	require.NoError(t, no.Validate())
	return no
}

func notificationsOf(t *testing.T, svc notification.Service, usr user.User) []notification.Notification {
	notifs, err := svc.Query(context.Background(), usr.ID, notification.QueryFilter{})
	require.NoError(t, err)
	return notifs
}

func Test_service_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   user.User
		no      okr.NewObjective
		wantErr bool
		isForb  bool
	}{
		{name: "employee for self", actor: f.employee, no: newObjective(t, "Ship v2", "")},
		{name: "employee for someone else", actor: f.employee, no: newObjective(t, "Ship v3", f.manager.ID), wantErr: true, isForb: true},
		{name: "manager for employee", actor: f.manager, no: newObjective(t, "Grow", f.employee.ID)},
		{name: "owner of another org", actor: f.admin, no: newObjective(t, "Steal", f.other.ID), wantErr: true},
		{name: "unknown team", actor: f.admin, no: func() okr.NewObjective {
			no := newObjective(t, "Team", "")
			no.TeamID = "5b7a8bc5-60b2-4c1f-a3b2-f4e0f7b0b0a1"
			return no
		}(), wantErr: true},
		{name: "unknown parent", actor: f.admin, no: func() okr.NewObjective {
			no := newObjective(t, "Child", "")
			no.ParentID = "5b7a8bc5-60b2-4c1f-a3b2-f4e0f7b0b0a1"
			return no
		}(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := f.svcs.OKRs.Create(ctx, tt.actor, tt.no)
			if tt.wantErr {
				require.Error(t, err)
				if tt.isForb {
					assert.Equal(t, core.ErrForbidden, errors.Cause(err))
				} else {
					assert.IsType(t, &core.ValidationError{}, errors.Cause(err))
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.actor.OrgID, o.OrgID)
			assert.Equal(t, okr.StatusActive, o.Status)
			assert.Equal(t, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), o.StartDate)
			assert.Equal(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), o.EndDate)
			assert.NotNil(t, o.KeyResults)
		})
	}

	// the employee was notified of the objective assigned by the manager
	notifs := notificationsOf(t, f.svcs.Notifications, f.employee)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.KindObjectiveAssigned, notifs[0].Kind)
}

func Test_service_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	parent, err := f.svcs.OKRs.Create(ctx, f.admin, newObjective(t, "Company", ""))
	require.NoError(t, err)
	child, err := f.svcs.OKRs.Create(ctx, f.employee, newObjective(t, "Mine", ""))
	require.NoError(t, err)

	t.Run("employee edits own objective", func(t *testing.T) {
		o, err := f.svcs.OKRs.Update(ctx, f.employee, child, okr.UpdateObjective{Title: "Mine, renamed", ParentID: testutil.StrPtr(parent.ID)})
		require.NoError(t, err)
		assert.Equal(t, "Mine, renamed", o.Title)
		assert.Equal(t, parent.ID, o.ParentID.String)
		child = o
	})
	t.Run("employee cannot edit others' objective", func(t *testing.T) {
		_, err := f.svcs.OKRs.Update(ctx, f.employee, parent, okr.UpdateObjective{Title: "Hijack"})
		assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	})
	t.Run("employee cannot reassign", func(t *testing.T) {
		_, err := f.svcs.OKRs.Update(ctx, f.employee, child, okr.UpdateObjective{OwnerID: f.manager.ID})
		assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	})
	t.Run("other org admin cannot edit", func(t *testing.T) {
		_, err := f.svcs.OKRs.Update(ctx, f.other, child, okr.UpdateObjective{Title: "Nope"})
		assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	})
	t.Run("alignment cycle", func(t *testing.T) {
		_, err := f.svcs.OKRs.Update(ctx, f.admin, parent, okr.UpdateObjective{ParentID: testutil.StrPtr(child.ID)})
		require.Error(t, err)
		assert.IsType(t, &core.ValidationError{}, errors.Cause(err))
	})
	t.Run("completing scores", func(t *testing.T) {
		o, err := f.svcs.OKRs.Update(ctx, f.manager, parent, okr.UpdateObjective{Status: okr.StatusCompleted})
		require.NoError(t, err)
		assert.True(t, o.Score.Valid)
		assert.Equal(t, "", o.Health)

		o, err = f.svcs.OKRs.Update(ctx, f.manager, o, okr.UpdateObjective{Status: okr.StatusActive})
		require.NoError(t, err)
		assert.False(t, o.Score.Valid)
	})
}

func Test_service_KeyResults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	obj, err := f.svcs.OKRs.Create(ctx, f.employee, newObjective(t, "Revenue", ""))
	require.NoError(t, err)

	kr1, err := f.svcs.OKRs.AddKeyResult(ctx, f.employee, obj, okr.NewKeyResult{
		Title: "MRR", MetricType: okr.MetricCurrency, StartValue: 0, TargetValue: testutil.FloatPtr(100), Weight: testutil.FloatPtr(3),
	})
	require.NoError(t, err)
	kr2, err := f.svcs.OKRs.AddKeyResult(ctx, f.employee, obj, okr.NewKeyResult{
		Title: "Launch", MetricType: okr.MetricBoolean, TargetValue: testutil.FloatPtr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, kr2.Weight)

	_, err = f.svcs.OKRs.AddKeyResult(ctx, f.other, obj, okr.NewKeyResult{
		Title: "Nope", MetricType: okr.MetricNumber, TargetValue: testutil.FloatPtr(1),
	})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	// weighted roll-up: (50*3 + 100*1) / 4 = 62.5
	_, err = f.svcs.OKRs.RecordValue(ctx, kr1, 50, 7)
	require.NoError(t, err)
	_, err = f.svcs.OKRs.RecordValue(ctx, kr2, 1, 9)
	require.NoError(t, err)

	obj, err = f.svcs.OKRs.Get(ctx, obj.OrgID, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, 62.5, obj.Progress)
	require.Len(t, obj.KeyResults, 2)
	for _, kr := range obj.KeyResults {
		if kr.ID == kr1.ID {
			assert.Equal(t, 7, kr.Confidence.Int)
			assert.Equal(t, 50.0, kr.Progress)
		}
	}

	kr1, err = f.svcs.OKRs.GetKeyResult(ctx, obj.OrgID, kr1.ID)
	require.NoError(t, err)
	_, err = f.svcs.OKRs.UpdateKeyResult(ctx, f.employee, kr1, okr.UpdateKeyResult{Weight: testutil.FloatPtr(1)})
	require.NoError(t, err)
	obj, err = f.svcs.OKRs.Get(ctx, obj.OrgID, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, obj.Progress)

	require.NoError(t, f.svcs.OKRs.DeleteKeyResult(ctx, f.manager, kr2))
	obj, err = f.svcs.OKRs.Get(ctx, obj.OrgID, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, obj.Progress)

	_, err = f.svcs.OKRs.GetKeyResult(ctx, f.other.OrgID, kr1.ID)
	assert.True(t, core.IsNotFound(err))
}

func Test_service_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	o1 := testutil.CreateObjective(t, f.svcs.OKRRepo, f.employee, "Hire engineers", "2026-Q3", now.Add(-2*time.Hour))
	o2 := testutil.CreateObjective(t, f.svcs.OKRRepo, f.manager, "Cut costs", "2026-Q3", now.Add(-time.Hour))
	o3 := testutil.CreateObjective(t, f.svcs.OKRRepo, f.employee, "Hire designers", "2026-Q4", now)
	testutil.CreateObjective(t, f.svcs.OKRRepo, f.other, "Elsewhere", "2026-Q3")
	testutil.CreateKeyResult(t, f.svcs.OKRRepo, o1, "Offers", 0, 10, 5, 1)

	ids := func(objs []okr.Objective) []string {
		res := make([]string, 0, len(objs))
		for _, o := range objs {
			res = append(res, o.ID)
		}
		return res
	}

	tests := []struct {
		name     string
		filter   okr.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all, newest first", want: []string{o3.ID, o2.ID, o1.ID}},
		{name: "by owner", filter: okr.QueryFilter{OwnerID: f.employee.ID}, want: []string{o3.ID, o1.ID}},
		{name: "by period", filter: okr.QueryFilter{Period: "2026-Q3"}, want: []string{o2.ID, o1.ID}},
		{name: "search", filter: okr.QueryFilter{Search: "hire"}, want: []string{o3.ID, o1.ID}},
		{name: "by status", filter: okr.QueryFilter{Statuses: []string{okr.StatusCancelled}}, want: []string{}},
		{name: "ordered by title", ordering: []core.DBOrdering{{Field: "title", Ascending: true}}, want: []string{o2.ID, o3.ID, o1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objs, err := f.svcs.OKRs.Query(ctx, f.admin.OrgID, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(objs))
			for _, o := range objs {
				assert.NotNil(t, o.KeyResults)
				if o.ID == o1.ID {
					assert.Len(t, o.KeyResults, 1)
				}
			}
		})
	}
}

func Test_service_Recompute(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	obj := testutil.CreateObjective(t, f.svcs.OKRRepo, f.employee, "Ended", "2026-Q1")
	testutil.CreateKeyResult(t, f.svcs.OKRRepo, obj, "Half", 0, 10, 5, 1)
	testutil.CreateKeyResult(t, f.svcs.OKRRepo, obj, "Full", 0, 10, 10, 1)

	// before the end date: progress refreshed only
	o, err := f.svcs.OKRs.Recompute(ctx, obj, obj.EndDate.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 75.0, o.Progress)
	assert.Equal(t, okr.StatusActive, o.Status)
	assert.False(t, o.Score.Valid)

	// after: scored & owner notified
	o, err = f.svcs.OKRs.Recompute(ctx, o, obj.EndDate.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, okr.StatusCompleted, o.Status)
	assert.Equal(t, 0.8, o.Score.Float64)
	assert.Len(t, o.KeyResults, 2)

	notifs := notificationsOf(t, f.svcs.Notifications, f.employee)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.KindObjectiveScored, notifs[0].Kind)
}

func Test_service_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	obj, err := f.svcs.OKRs.Create(ctx, f.manager, newObjective(t, "Temp", ""))
	require.NoError(t, err)
	assert.Equal(t, core.ErrForbidden, errors.Cause(f.svcs.OKRs.Delete(ctx, f.employee, obj)))

	require.NoError(t, f.svcs.OKRs.Delete(ctx, f.admin, obj))
	_, err = f.svcs.OKRs.Get(ctx, obj.OrgID, obj.ID)
	assert.Equal(t, okr.ErrNotFound, errors.Cause(err))
}
