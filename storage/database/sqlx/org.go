package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/org"
)

var (
	orgColumns  = []string{"id", "name", "slug", "settings", "created_at", "updated_at"}
	teamColumns = []string{"id", "org_id", "name", "lead_id", "created_at", "updated_at"}
)

type orgRepository struct {
	repo
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *sqlx.DB) org.Repository {
	return &orgRepository{repo{db: db}}
}

func (r *orgRepository) CreateOrg(ctx context.Context, o org.Organization) (org.Organization, error) {
	qb := psql.Insert("organization").
		Columns(orgColumns...).
		Values(o.ID, o.Name, o.Slug, o.Settings, o.CreatedAt, o.UpdatedAt)
	if _, err := r.execute(ctx, qb); err != nil {
		if isUniqueViolation(err) {
			return org.Organization{}, org.ErrSlugExists
		}
		return org.Organization{}, errors.Wrap(err, "inserting organization")
	}
	return o, nil
}

func (r *orgRepository) QueryOrgs(ctx context.Context) ([]org.Organization, error) {
	orgs := make([]org.Organization, 0)
	if err := r.selectRows(ctx, &orgs, psql.Select(orgColumns...).From("organization").OrderBy("created_at ASC")); err != nil {
		return nil, errors.Wrap(err, "selecting organizations")
	}
	return orgs, nil
}

func (r *orgRepository) GetOrgByID(ctx context.Context, id string) (org.Organization, error) {
	var o org.Organization
	err := r.get(ctx, &o, psql.Select(orgColumns...).From("organization").Where(sq.Eq{"id": id}), org.ErrNotFound)
	return o, err
}

func (r *orgRepository) GetOrgBySlug(ctx context.Context, slug string) (org.Organization, error) {
	var o org.Organization
	err := r.get(ctx, &o, psql.Select(orgColumns...).From("organization").Where(sq.Eq{"slug": slug}), org.ErrNotFound)
	return o, err
}

func (r *orgRepository) UpdateOrg(ctx context.Context, o org.Organization) (org.Organization, error) {
	qb := psql.Update("organization").
		Set("name", o.Name).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID})
	if err := r.executeOne(ctx, qb, org.ErrNotFound); err != nil {
		return org.Organization{}, errors.Wrap(err, "updating organization")
	}
	return o, nil
}

func (r *orgRepository) UpdateOrgSettings(ctx context.Context, id string, s org.Settings) error {
	qb := psql.Update("organization").Set("settings", s).Where(sq.Eq{"id": id})
	return errors.Wrap(r.executeOne(ctx, qb, org.ErrNotFound), "updating organization settings")
}

func teamError(err error) error {
	if isUniqueViolation(err) {
		return org.ErrTeamExists
	}
	return err
}

func (r *orgRepository) CreateTeam(ctx context.Context, t org.Team) (org.Team, error) {
	qb := psql.Insert("team").
		Columns(teamColumns...).
		Values(t.ID, t.OrgID, t.Name, t.LeadID, t.CreatedAt, t.UpdatedAt)
	if _, err := r.execute(ctx, qb); err != nil {
		return org.Team{}, errors.Wrap(teamError(err), "inserting team")
	}
	return t, nil
}

func (r *orgRepository) QueryTeams(ctx context.Context, orgID string) ([]org.Team, error) {
	teams := make([]org.Team, 0)
	qb := psql.Select(teamColumns...).From("team").Where(sq.Eq{"org_id": orgID}).OrderBy("name ASC")
	if err := r.selectRows(ctx, &teams, qb); err != nil {
		return nil, errors.Wrap(err, "selecting teams")
	}
	return teams, nil
}

func (r *orgRepository) GetTeam(ctx context.Context, orgID, id string) (org.Team, error) {
	var t org.Team
	err := r.get(ctx, &t, psql.Select(teamColumns...).From("team").Where(sq.Eq{"id": id, "org_id": orgID}), org.ErrTeamNotFound)
	return t, err
}

func (r *orgRepository) UpdateTeam(ctx context.Context, t org.Team) (org.Team, error) {
	qb := psql.Update("team").
		Set("name", t.Name).
		Set("lead_id", t.LeadID).
		Set("updated_at", t.UpdatedAt).
		Where(sq.Eq{"id": t.ID, "org_id": t.OrgID})
	if err := r.executeOne(ctx, qb, org.ErrTeamNotFound); err != nil {
		return org.Team{}, errors.Wrap(teamError(err), "updating team")
	}
	return t, nil
}

func (r *orgRepository) DeleteTeam(ctx context.Context, orgID, id string) error {
	_, err := r.execute(ctx, psql.Delete("team").Where(sq.Eq{"id": id, "org_id": orgID}))
	return errors.Wrap(err, "deleting team")
}
