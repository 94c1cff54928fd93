package notification

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Kinds
const (
	KindCheckInReminder    = "checkin_reminder"
	KindCheckInCreated     = "checkin_created"
	KindInvitationAccepted = "invitation_accepted"
	KindObjectiveAssigned  = "objective_assigned"
	KindObjectiveScored    = "objective_scored"
)

type Notification struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Kind      string    `json:"kind" db:"kind"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Link      string    `json:"link" db:"link"`
	ReadAt    null.Time `json:"read_at" db:"read_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (n Notification) IsRead() bool { return n.ReadAt.Valid }

// NewNotification is what a service provides to notify a user.
type NewNotification struct {
	Kind  string
	Title string
	Body  string
	Link  string // relative to the frontend base URL
	Email bool   // also send it by email
}

type QueryFilter struct {
	UnreadOnly bool
	Limit      int
}

type UnreadCount struct {
	Count int `json:"count"`
}
