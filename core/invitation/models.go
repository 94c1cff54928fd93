package invitation

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
)

type Invitation struct {
	ID          string    `json:"id" db:"id"`
	OrgID       string    `json:"org_id" db:"org_id"`
	Email       string    `json:"email" db:"email"`
	Role        string    `json:"role" db:"role"`
	InvitedByID string    `json:"invited_by_id" db:"invited_by_id"`
	Token       string    `json:"-" db:"token"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	AcceptedAt  null.Time `json:"accepted_at" db:"accepted_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func (inv Invitation) IsAccepted() bool { return inv.AcceptedAt.Valid }

func (inv Invitation) IsExpired(now time.Time) bool { return !now.Before(inv.ExpiresAt) }

func (inv Invitation) IsPending(now time.Time) bool { return !inv.IsAccepted() && !inv.IsExpired(now) }

// Preview is what an invitee sees before accepting.
type Preview struct {
	OrgName     string    `json:"org_name"`
	InviterName string    `json:"inviter_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewInvitation contains information needed to invite someone to an organization.
type NewInvitation struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Role  string `json:"role" validate:"required,role"`
}

func (ni *NewInvitation) Validate() error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	return core.Validate.Struct(ni)
}

// AcceptInvitation contains what an invitee provides to join an organization.
type AcceptInvitation struct {
	Name            string `json:"name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}
