package invitation_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/invitation"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/user"
	emailsvc "github.com/trezcool/kipimo/services/email"
	"github.com/trezcool/kipimo/storage/database/inmem"
	"github.com/trezcool/kipimo/tests"
)

const pwd = "Tr0ub4dor&3x"

func setNow(t *testing.T, now *time.Time) {
	invitation.NowFunc = func() time.Time { return *now }
	t.Cleanup(func() { invitation.NowFunc = func() time.Time { return time.Now().UTC() } })
}

func Test_service_Create(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()

	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")
	admin := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Ada", "ada@acme.io", "", user.RoleAdmin, true)
	manager := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Max", "max@acme.io", "", user.RoleManager, true)
	employee := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Eve", "eve@acme.io", "", user.RoleEmployee, true)

	tests := []struct {
		name    string
		actor   user.User
		ni      invitation.NewInvitation
		wantErr error // cause; nil for a validation error when invalid is set
		invalid bool
	}{
		{name: "admin invites a manager", actor: admin, ni: invitation.NewInvitation{Email: "New.Manager@acme.io", Role: user.RoleManager}},
		{name: "manager invites an employee", actor: manager, ni: invitation.NewInvitation{Email: "new.hire@acme.io", Role: user.RoleEmployee}},
		{name: "manager invites a manager", actor: manager, ni: invitation.NewInvitation{Email: "boss@acme.io", Role: user.RoleManager}, invalid: true},
		{name: "employee invites", actor: employee, ni: invitation.NewInvitation{Email: "friend@acme.io", Role: user.RoleEmployee}, wantErr: core.ErrForbidden},
		{name: "existing user", actor: admin, ni: invitation.NewInvitation{Email: "eve@acme.io", Role: user.RoleEmployee}, invalid: true},
		{name: "pending invitation", actor: admin, ni: invitation.NewInvitation{Email: "new.hire@acme.io", Role: user.RoleEmployee}, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.ni.Validate())
			inv, err := svcs.Invitations.Create(ctx, tt.actor, tt.ni)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.invalid:
				require.Error(t, err)
				assert.IsType(t, &core.ValidationError{}, errors.Cause(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.ni.Email, inv.Email)
				assert.Equal(t, tt.actor.ID, inv.InvitedByID)
				assert.Len(t, inv.Token, 43) // 32 bytes, unpadded base64
				assert.Equal(t, inv.CreatedAt.Add(core.Conf.InvitationTimeoutDelta), inv.ExpiresAt)
			}
		})
	}

	sent := emailsvc.Outbox()
	require.Len(t, sent, 2)
	assert.Equal(t, "new.manager@acme.io", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "/join/")

	pending, err := svcs.Invitations.QueryPending(ctx, acme.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func Test_service_Revoke(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()

	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")
	admin := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Ada", "ada@acme.io", "", user.RoleAdmin, true)
	manager := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Max", "max@acme.io", "", user.RoleManager, true)
	globex := testutil.CreateOrg(t, svcs.OrgRepo, "Globex")
	stranger := testutil.CreateUser(t, svcs.UserRepo, globex.ID, "Otto", "otto@globex.io", "", user.RoleAdmin, true)

	inv, err := svcs.Invitations.Create(ctx, admin, invitation.NewInvitation{Email: "joe@acme.io", Role: user.RoleEmployee})
	require.NoError(t, err)

	assert.Equal(t, core.ErrForbidden, errors.Cause(svcs.Invitations.Revoke(ctx, manager, inv.ID)))
	assert.Equal(t, invitation.ErrNotFound, errors.Cause(svcs.Invitations.Revoke(ctx, stranger, inv.ID)))
	assert.Equal(t, invitation.ErrNotFound, errors.Cause(svcs.Invitations.Revoke(ctx, admin, "not-a-uuid")))

	require.NoError(t, svcs.Invitations.Revoke(ctx, admin, inv.ID))
	pending, err := svcs.Invitations.QueryPending(ctx, acme.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func Test_service_Accept(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	now := time.Now().UTC()
	setNow(t, &now)

	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")
	manager := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Max", "max@acme.io", "", user.RoleManager, true)

	inv, err := svcs.Invitations.Create(ctx, manager, invitation.NewInvitation{Email: "joe@acme.io", Role: user.RoleEmployee})
	require.NoError(t, err)
	expired, err := svcs.Invitations.Create(ctx, manager, invitation.NewInvitation{Email: "late@acme.io", Role: user.RoleEmployee})
	require.NoError(t, err)

	t.Run("preview", func(t *testing.T) {
		p, err := svcs.Invitations.Preview(ctx, inv.Token)
		require.NoError(t, err)
		assert.Equal(t, invitation.Preview{
			OrgName:     "Acme",
			InviterName: "Max",
			Email:       "joe@acme.io",
			Role:        user.RoleEmployee,
			ExpiresAt:   inv.ExpiresAt,
		}, p)

		_, err = svcs.Invitations.Preview(ctx, "unknown")
		assert.Equal(t, invitation.ErrNotFound, errors.Cause(err))
	})
	t.Run("weak password", func(t *testing.T) {
		_, err := svcs.Invitations.Accept(ctx, inv.Token, invitation.AcceptInvitation{Name: "Joe", Password: "joe", PasswordConfirm: "joe"})
		require.Error(t, err)
	})
	t.Run("accept", func(t *testing.T) {
		usr, err := svcs.Invitations.Accept(ctx, inv.Token, invitation.AcceptInvitation{Name: "Joe", Password: pwd, PasswordConfirm: pwd})
		require.NoError(t, err)
		assert.Equal(t, acme.ID, usr.OrgID)
		assert.Equal(t, "joe@acme.io", usr.Email)
		assert.Equal(t, user.RoleEmployee, usr.Role)
		assert.NoError(t, usr.CheckPassword(pwd))

		notifs, err := svcs.Notifications.Query(ctx, manager.ID, notification.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, notification.KindInvitationAccepted, notifs[0].Kind)
	})
	t.Run("accepted twice", func(t *testing.T) {
		_, err := svcs.Invitations.Accept(ctx, inv.Token, invitation.AcceptInvitation{Name: "Joe", Password: pwd, PasswordConfirm: pwd})
		require.Error(t, err)
		assert.Equal(t, invitation.ErrAccepted, errors.Cause(err).(*core.ValidationError).Err)
	})
	t.Run("expired", func(t *testing.T) {
		now = expired.ExpiresAt
		_, err := svcs.Invitations.Accept(ctx, expired.Token, invitation.AcceptInvitation{Name: "Late", Password: pwd, PasswordConfirm: pwd})
		require.Error(t, err)
		assert.Equal(t, invitation.ErrExpired, errors.Cause(err).(*core.ValidationError).Err)
	})
}

func Test_service_Accept_notificationFailure(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()

	notifier := testutil.NewFailingNotifier(svcs.Notifications)
	svc := invitation.NewService(inmemdb.NewTransactor(), svcs.InvitationRepo, svcs.Orgs, svcs.Users, notifier, svcs.Mail, svcs.Logger)

	acme := testutil.CreateOrg(t, svcs.OrgRepo, "Acme")
	manager := testutil.CreateUser(t, svcs.UserRepo, acme.ID, "Max", "max@acme.io", "", user.RoleManager, true)

	inv, err := svc.Create(ctx, manager, invitation.NewInvitation{Email: "joe@acme.io", Role: user.RoleEmployee})
	require.NoError(t, err)

	usr, err := svc.Accept(ctx, inv.Token, invitation.AcceptInvitation{Name: "Joe", Password: pwd, PasswordConfirm: pwd})
	require.NoError(t, err)
	assert.Equal(t, "joe@acme.io", usr.Email)

	stored, err := svcs.Users.GetByEmail(ctx, "joe@acme.io")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, stored.ID)

	// the invitation is consumed even though the inviter was not notified
	_, err = svc.Accept(ctx, inv.Token, invitation.AcceptInvitation{Name: "Joe", Password: pwd, PasswordConfirm: pwd})
	require.Error(t, err)
	assert.Equal(t, invitation.ErrAccepted, errors.Cause(err).(*core.ValidationError).Err)
}
