package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/invitation"
)

type invitationRepository struct {
	db *table[invitation.Invitation]
}

var _ invitation.Repository = (*invitationRepository)(nil)

func NewInvitationRepository(db *DB) invitation.Repository {
	return &invitationRepository{db: db.invitation}
}

func (repo *invitationRepository) CreateInvitation(_ context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.rows[inv.ID] = &inv
	return inv, nil
}

func (repo *invitationRepository) QueryPendingInvitations(_ context.Context, orgID string, now time.Time) ([]invitation.Invitation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	invs := make([]invitation.Invitation, 0)
	for _, inv := range repo.db.all() {
		if inv.OrgID == orgID && inv.IsPending(now) {
			invs = append(invs, inv)
		}
	}
	sortRows(invs, nil, []core.DBOrdering{{Field: "created_at"}}, func(a, b invitation.Invitation, _ string) int {
		return compareTime(a.CreatedAt, b.CreatedAt)
	})
	return invs, nil
}

func (repo *invitationRepository) GetInvitation(_ context.Context, orgID, id string) (invitation.Invitation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if inv, ok := repo.db.rows[id]; ok && inv.OrgID == orgID {
		return *inv, nil
	}
	return invitation.Invitation{}, invitation.ErrNotFound
}

func (repo *invitationRepository) GetInvitationByToken(_ context.Context, token string) (invitation.Invitation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, inv := range repo.db.rows {
		if inv.Token == token {
			return *inv, nil
		}
	}
	return invitation.Invitation{}, invitation.ErrNotFound
}

func (repo *invitationRepository) MarkAccepted(_ context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	inv, ok := repo.db.rows[id]
	if !ok {
		return invitation.ErrNotFound
	}
	inv.AcceptedAt = null.TimeFrom(at)
	return nil
}

func (repo *invitationRepository) DeleteInvitation(_ context.Context, orgID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if inv, ok := repo.db.rows[id]; ok && inv.OrgID == orgID {
		delete(repo.db.rows, id)
	}
	return nil
}
