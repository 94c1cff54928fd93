package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("invitation")
	ErrExpired        = errors.New("this invitation has expired")
	ErrAccepted       = errors.New("this invitation has already been accepted")
	ErrPendingExists  = errors.New("a pending invitation already exists for this email")
	errRoleNotAllowed = errors.New("you may not invite users with this role")

	// NowFunc is used to check expiry; tests may replace it.
	NowFunc = func() time.Time { return time.Now().UTC() }

	tokenBytes = 32
)

type (
	Repository interface {
		CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		// QueryPendingInvitations returns invitations neither accepted nor expired at now, newest first.
		QueryPendingInvitations(ctx context.Context, orgID string, now time.Time) ([]Invitation, error)
		GetInvitation(ctx context.Context, orgID, id string) (Invitation, error)
		GetInvitationByToken(ctx context.Context, token string) (Invitation, error)
		MarkAccepted(ctx context.Context, id string, at time.Time) error
		DeleteInvitation(ctx context.Context, orgID, id string) error
	}

	Service interface {
		Create(ctx context.Context, actor user.User, ni NewInvitation) (Invitation, error)
		QueryPending(ctx context.Context, orgID string) ([]Invitation, error)
		Revoke(ctx context.Context, actor user.User, id string) error
		// Preview returns the public view of a pending invitation.
		Preview(ctx context.Context, token string) (Preview, error)
		// Accept creates the invited user, marks the invitation accepted and notifies the inviter.
		Accept(ctx context.Context, token string, ai AcceptInvitation) (user.User, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		orgSvc   org.Service
		usrSvc   user.Service
		notifSvc notification.Service
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	orgSvc org.Service,
	usrSvc user.Service,
	notifSvc notification.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		orgSvc:   orgSvc,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (svc *service) Create(ctx context.Context, actor user.User, ni NewInvitation) (Invitation, error) {
	if !actor.IsAdmin() && !actor.IsManager() {
		return Invitation{}, core.ErrForbidden
	}
	if actor.IsManager() && ni.Role != user.RoleEmployee {
		return Invitation{}, core.NewValidationError(errRoleNotAllowed, core.FieldError{Field: "role", Error: errRoleNotAllowed.Error()})
	}
	if err := svc.usrSvc.CheckEmailUniqueness(ctx, ni.Email); err != nil {
		return Invitation{}, err
	}

	now := NowFunc()
	pending, err := svc.repo.QueryPendingInvitations(ctx, actor.OrgID, now)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "querying pending invitations")
	}
	for _, inv := range pending {
		if inv.Email == ni.Email {
			return Invitation{}, core.NewValidationError(ErrPendingExists, core.FieldError{Field: "email", Error: ErrPendingExists.Error()})
		}
	}

	o, err := svc.orgSvc.GetByID(ctx, actor.OrgID)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "finding organization")
	}
	token, err := newToken()
	if err != nil {
		return Invitation{}, err
	}

	inv, err := svc.repo.CreateInvitation(ctx, Invitation{
		ID:          uuid.NewString(),
		OrgID:       actor.OrgID,
		Email:       ni.Email,
		Role:        ni.Role,
		InvitedByID: actor.ID,
		Token:       token,
		ExpiresAt:   now.Add(core.Conf.InvitationTimeoutDelta),
		CreatedAt:   now,
	})
	if err != nil {
		return Invitation{}, errors.Wrap(err, "creating invitation")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      fmt.Sprintf("Join %s on %s", o.Name, core.Conf.AppName),
		TemplateName: "invitation",
		TemplateData: map[string]string{
			"InviterName": actor.Name,
			"OrgName":     o.Name,
			"Role":        inv.Role,
			"Token":       inv.Token,
			"ExpiresAt":   inv.ExpiresAt.Format("Jan 2, 2006"),
		},
	})
	return inv, nil
}

func (svc *service) QueryPending(ctx context.Context, orgID string) ([]Invitation, error) {
	return svc.repo.QueryPendingInvitations(ctx, orgID, NowFunc())
}

func (svc *service) Revoke(ctx context.Context, actor user.User, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	inv, err := svc.repo.GetInvitation(ctx, actor.OrgID, id)
	if err != nil {
		return err
	}
	if actor.IsManager() && inv.InvitedByID != actor.ID {
		return core.ErrForbidden
	}
	return svc.repo.DeleteInvitation(ctx, actor.OrgID, id)
}

// pending returns the invitation identified by token, unless it is no longer usable.
func (svc *service) pending(ctx context.Context, token string) (Invitation, error) {
	if token == "" {
		return Invitation{}, ErrNotFound
	}
	inv, err := svc.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	if inv.IsAccepted() {
		return Invitation{}, core.NewValidationError(ErrAccepted)
	}
	if inv.IsExpired(NowFunc()) {
		return Invitation{}, core.NewValidationError(ErrExpired)
	}
	return inv, nil
}

func (svc *service) Preview(ctx context.Context, token string) (Preview, error) {
	inv, err := svc.pending(ctx, token)
	if err != nil {
		return Preview{}, err
	}
	o, err := svc.orgSvc.GetByID(ctx, inv.OrgID)
	if err != nil {
		return Preview{}, errors.Wrap(err, "finding organization")
	}
	p := Preview{
		OrgName:   o.Name,
		Email:     inv.Email,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
	}
	if inviter, err := svc.usrSvc.GetByID(ctx, inv.InvitedByID); err == nil {
		p.InviterName = inviter.Name
	}
	return p, nil
}

func (svc *service) Accept(ctx context.Context, token string, ai AcceptInvitation) (user.User, error) {
	inv, err := svc.pending(ctx, token)
	if err != nil {
		return user.User{}, err
	}

	nu := user.NewUser{
		Name:            ai.Name,
		Email:           inv.Email,
		Role:            inv.Role,
		Password:        ai.Password,
		PasswordConfirm: ai.PasswordConfirm,
	}
	if err = nu.Validate(ctx, svc.usrSvc); err != nil {
		return user.User{}, err
	}

	var usr user.User
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if usr, err = svc.usrSvc.Create(ctx, inv.OrgID, nu); err != nil {
			return errors.Wrap(err, "creating user")
		}
		return errors.Wrap(svc.repo.MarkAccepted(ctx, inv.ID, NowFunc()), "marking invitation accepted")
	})
	if err != nil {
		return user.User{}, err
	}

	if err = svc.notifyInviter(ctx, inv, usr); err != nil {
		svc.logger.Error("invitation: notifying inviter", err, map[string]interface{}{
			"invitation_id": inv.ID,
			"user_id":       usr.ID,
		})
	}
	return usr, nil
}

// notifyInviter tells the inviter that usr joined; a deleted inviter is skipped.
func (svc *service) notifyInviter(ctx context.Context, inv Invitation, usr user.User) error {
	inviter, err := svc.usrSvc.GetOrgUser(ctx, inv.OrgID, inv.InvitedByID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding inviter")
	}
	_, err = svc.notifSvc.Notify(ctx, inviter, notification.NewNotification{
		Kind:  notification.KindInvitationAccepted,
		Title: "Invitation accepted",
		Body:  fmt.Sprintf("%s (%s) joined as %s.", usr.Name, usr.Email, usr.Role),
		Link:  "/users/" + usr.ID,
	})
	return errors.Wrap(err, "notifying inviter")
}
