package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/invitation"
)

var invitationColumns = []string{
	"id", "org_id", "email", "role", "invited_by_id", "token", "expires_at", "accepted_at", "created_at",
}

type invitationRepository struct {
	repo
}

var _ invitation.Repository = (*invitationRepository)(nil)

func NewInvitationRepository(db *sqlx.DB) invitation.Repository {
	return &invitationRepository{repo{db: db}}
}

func (r *invitationRepository) CreateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	qb := psql.Insert("invitation").
		Columns(invitationColumns...).
		Values(inv.ID, inv.OrgID, inv.Email, inv.Role, inv.InvitedByID, inv.Token, inv.ExpiresAt, inv.AcceptedAt, inv.CreatedAt)
	if _, err := r.execute(ctx, qb); err != nil {
		return invitation.Invitation{}, errors.Wrap(err, "inserting invitation")
	}
	return inv, nil
}

func (r *invitationRepository) QueryPendingInvitations(ctx context.Context, orgID string, now time.Time) ([]invitation.Invitation, error) {
	qb := psql.Select(invitationColumns...).
		From("invitation").
		Where(sq.Eq{"org_id": orgID, "accepted_at": nil}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("created_at DESC")

	invs := make([]invitation.Invitation, 0)
	if err := r.selectRows(ctx, &invs, qb); err != nil {
		return nil, errors.Wrap(err, "selecting invitations")
	}
	return invs, nil
}

func (r *invitationRepository) GetInvitation(ctx context.Context, orgID, id string) (invitation.Invitation, error) {
	var inv invitation.Invitation
	qb := psql.Select(invitationColumns...).From("invitation").Where(sq.Eq{"id": id, "org_id": orgID})
	err := r.get(ctx, &inv, qb, invitation.ErrNotFound)
	return inv, err
}

func (r *invitationRepository) GetInvitationByToken(ctx context.Context, token string) (invitation.Invitation, error) {
	var inv invitation.Invitation
	qb := psql.Select(invitationColumns...).From("invitation").Where(sq.Eq{"token": token})
	err := r.get(ctx, &inv, qb, invitation.ErrNotFound)
	return inv, err
}

func (r *invitationRepository) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	qb := psql.Update("invitation").Set("accepted_at", at).Where(sq.Eq{"id": id})
	return errors.Wrap(r.executeOne(ctx, qb, invitation.ErrNotFound), "marking invitation accepted")
}

func (r *invitationRepository) DeleteInvitation(ctx context.Context, orgID, id string) error {
	_, err := r.execute(ctx, psql.Delete("invitation").Where(sq.Eq{"id": id, "org_id": orgID}))
	return errors.Wrap(err, "deleting invitation")
}
