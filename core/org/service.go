package org

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/user"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("organization")
	ErrTeamNotFound = core.NewNotFoundError("team")
	ErrSlugExists   = errors.New("an organization with this slug already exists")
	ErrTeamExists   = errors.New("a team with this name already exists")

	tzTag  = "tz"
	tzText = "unknown timezone"
)

func init() {
	_ = core.Validate.RegisterValidation(tzTag, func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
	core.RegisterCustomTranslation(core.Validate, core.Translator, tzTag, tzText)
}

type (
	Repository interface {
		CreateOrg(ctx context.Context, o Organization) (Organization, error)
		QueryOrgs(ctx context.Context) ([]Organization, error)
		GetOrgByID(ctx context.Context, id string) (Organization, error)
		GetOrgBySlug(ctx context.Context, slug string) (Organization, error)
		UpdateOrg(ctx context.Context, o Organization) (Organization, error)
		UpdateOrgSettings(ctx context.Context, id string, s Settings) error

		CreateTeam(ctx context.Context, t Team) (Team, error)
		QueryTeams(ctx context.Context, orgID string) ([]Team, error)
		GetTeam(ctx context.Context, orgID, id string) (Team, error)
		UpdateTeam(ctx context.Context, t Team) (Team, error)
		DeleteTeam(ctx context.Context, orgID, id string) error
	}

	Service interface {
		// Register creates an organization together with its first admin user.
		Register(ctx context.Context, orgName string, admin user.NewUser) (Organization, user.User, error)
		QueryAll(ctx context.Context) ([]Organization, error)
		GetByID(ctx context.Context, id string) (Organization, error)
		GetBySlug(ctx context.Context, slug string) (Organization, error)
		Update(ctx context.Context, o Organization, uo UpdateOrg) (Organization, error)
		UpdateSettings(ctx context.Context, o Organization, us UpdateSettings) (Organization, error)
		// MarkJobRun persists the last run time of job in the organization settings.
		MarkJobRun(ctx context.Context, orgID, job string, at time.Time) error

		CreateTeam(ctx context.Context, orgID string, nt NewTeam) (Team, error)
		QueryTeams(ctx context.Context, orgID string) ([]Team, error)
		GetTeam(ctx context.Context, orgID, id string) (Team, error)
		UpdateTeam(ctx context.Context, t Team, ut UpdateTeam) (Team, error)
		DeleteTeam(ctx context.Context, orgID, id string) error
	}

	service struct {
		tx     core.Transactor
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, usrSvc user.Service) Service {
	return &service{
		tx:     tx,
		repo:   repo,
		usrSvc: usrSvc,
	}
}

func (svc *service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := core.Slugify(name)
	if base == "" {
		base = "org"
	}
	slug := base
	for i := 0; i < 5; i++ {
		_, err := svc.repo.GetOrgBySlug(ctx, slug)
		if errors.Cause(err) == ErrNotFound {
			return slug, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "finding organization by slug")
		}
		slug = base + "-" + uuid.NewString()[:6]
	}
	return "", ErrSlugExists
}

func (svc *service) Register(ctx context.Context, orgName string, admin user.NewUser) (Organization, user.User, error) {
	var (
		o   Organization
		usr user.User
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		slug, err := svc.uniqueSlug(ctx, orgName)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		o, err = svc.repo.CreateOrg(ctx, Organization{
			ID:        uuid.NewString(),
			Name:      orgName,
			Slug:      slug,
			Settings:  DefaultSettings(),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return errors.Wrap(err, "creating organization")
		}

		admin.Role = user.RoleAdmin
		usr, err = svc.usrSvc.Create(ctx, o.ID, admin)
		return errors.Wrap(err, "creating admin user")
	})
	if err != nil {
		return Organization{}, user.User{}, err
	}
	return o, usr, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Organization, error) {
	return svc.repo.QueryOrgs(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Organization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Organization{}, ErrNotFound
	}
	return svc.repo.GetOrgByID(ctx, id)
}

func (svc *service) GetBySlug(ctx context.Context, slug string) (Organization, error) {
	return svc.repo.GetOrgBySlug(ctx, core.CleanString(slug, true /* lower */))
}

func (svc *service) Update(ctx context.Context, o Organization, uo UpdateOrg) (Organization, error) {
	o.Name = uo.Name
	o.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateOrg(ctx, o)
}

func (svc *service) UpdateSettings(ctx context.Context, o Organization, us UpdateSettings) (Organization, error) {
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		fresh, err := svc.repo.GetOrgByID(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "finding organization")
		}
		o = fresh
		o.Settings = us.Apply(fresh.Settings)
		return svc.repo.UpdateOrgSettings(ctx, o.ID, o.Settings)
	})
	if err != nil {
		return Organization{}, err
	}
	return o, nil
}

func (svc *service) MarkJobRun(ctx context.Context, orgID, job string, at time.Time) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := svc.repo.GetOrgByID(ctx, orgID)
		if err != nil {
			return errors.Wrap(err, "finding organization")
		}
		o.Settings.MarkRun(job, at)
		return svc.repo.UpdateOrgSettings(ctx, orgID, o.Settings)
	})
}

func (svc *service) checkLead(ctx context.Context, orgID, leadID string) error {
	if leadID == "" {
		return nil
	}
	if _, err := svc.usrSvc.GetOrgUser(ctx, orgID, leadID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "lead_id", Error: "unknown user"})
		}
		return errors.Wrap(err, "finding team lead")
	}
	return nil
}

func (svc *service) CreateTeam(ctx context.Context, orgID string, nt NewTeam) (Team, error) {
	if err := svc.checkLead(ctx, orgID, nt.LeadID); err != nil {
		return Team{}, err
	}
	now := time.Now().UTC()
	t, err := svc.repo.CreateTeam(ctx, Team{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      nt.Name,
		LeadID:    null.NewString(nt.LeadID, nt.LeadID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
	return t, teamError(err)
}

func (svc *service) QueryTeams(ctx context.Context, orgID string) ([]Team, error) {
	return svc.repo.QueryTeams(ctx, orgID)
}

func (svc *service) GetTeam(ctx context.Context, orgID, id string) (Team, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Team{}, ErrTeamNotFound
	}
	return svc.repo.GetTeam(ctx, orgID, id)
}

func (svc *service) UpdateTeam(ctx context.Context, t Team, ut UpdateTeam) (Team, error) {
	if ut.Name != "" {
		t.Name = ut.Name
	}
	if ut.LeadID != nil {
		if err := svc.checkLead(ctx, t.OrgID, *ut.LeadID); err != nil {
			return Team{}, err
		}
		t.LeadID = null.NewString(*ut.LeadID, *ut.LeadID != "")
	}
	t.UpdatedAt = time.Now().UTC()
	t, err := svc.repo.UpdateTeam(ctx, t)
	return t, teamError(err)
}

func (svc *service) DeleteTeam(ctx context.Context, orgID, id string) error {
	return svc.repo.DeleteTeam(ctx, orgID, id)
}

func teamError(err error) error {
	if errors.Cause(err) == ErrTeamExists {
		return core.NewValidationError(err, core.FieldError{Field: "name", Error: ErrTeamExists.Error()})
	}
	return err
}
