package org

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/user"
)

type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Settings  Settings  `json:"settings" db:"settings"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Team struct {
	ID        string      `json:"id" db:"id"`
	OrgID     string      `json:"org_id" db:"org_id"`
	Name      string      `json:"name" db:"name"`
	LeadID    null.String `json:"lead_id" db:"lead_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Registration contains what is needed to sign up a new organization with its first admin.
type Registration struct {
	OrgName         string `json:"org_name" validate:"required,notblank,max=150"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r *Registration) Admin() user.NewUser {
	return user.NewUser{
		Name:            r.Name,
		Email:           r.Email,
		Role:            user.RoleAdmin,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
	}
}

func (r *Registration) Validate(ctx context.Context, usrSvc user.Service) (user.NewUser, error) {
	r.OrgName = core.CleanString(r.OrgName)
	if err := core.Validate.Struct(r); err != nil {
		return user.NewUser{}, err
	}
	nu := r.Admin()
	if err := nu.Validate(ctx, usrSvc); err != nil {
		return user.NewUser{}, err
	}
	return nu, nil
}

type UpdateOrg struct {
	Name string `json:"name" validate:"required,notblank,max=150"`
}

func (uo *UpdateOrg) Validate() error {
	uo.Name = core.CleanString(uo.Name)
	return core.Validate.Struct(uo)
}

type UpdateSettings struct {
	ReminderEnabled *bool   `json:"reminder_enabled"`
	ReminderWeekday *int    `json:"reminder_weekday" validate:"omitempty,min=0,max=6"`
	ScoringEnabled  *bool   `json:"scoring_enabled"`
	Timezone        *string `json:"timezone" validate:"omitempty,tz"`
}

func (us UpdateSettings) Validate() error { return core.Validate.Struct(us) }

// Apply returns a copy of s with the provided fields changed. Last runs are kept.
func (us UpdateSettings) Apply(s Settings) Settings {
	if us.ReminderEnabled != nil {
		s.ReminderEnabled = *us.ReminderEnabled
	}
	if us.ReminderWeekday != nil {
		s.ReminderWeekday = time.Weekday(*us.ReminderWeekday)
	}
	if us.ScoringEnabled != nil {
		s.ScoringEnabled = *us.ScoringEnabled
	}
	if us.Timezone != nil {
		s.Timezone = *us.Timezone
	}
	return s
}

type NewTeam struct {
	Name   string `json:"name" validate:"required,notblank,max=150"`
	LeadID string `json:"lead_id" validate:"omitempty,uuid"`
}

func (nt *NewTeam) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	return core.Validate.Struct(nt)
}

type UpdateTeam struct {
	Name   string  `json:"name" validate:"omitempty,notblank,max=150"`
	LeadID *string `json:"lead_id"` // "" removes the lead
}

func (ut *UpdateTeam) Validate() error {
	ut.Name = core.CleanString(ut.Name)
	return core.Validate.Struct(ut)
}
