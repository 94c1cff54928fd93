package inmemdb

import (
	"context"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
)

type orgRepository struct {
	org       *table[org.Organization]
	team      *table[org.Team]
	objective *table[okr.Objective]
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *DB) org.Repository {
	return &orgRepository{org: db.org, team: db.team, objective: db.objective}
}

func (repo *orgRepository) CreateOrg(_ context.Context, o org.Organization) (org.Organization, error) {
	repo.org.Lock()
	defer repo.org.Unlock()

	for _, existing := range repo.org.rows {
		if existing.Slug == o.Slug {
			return org.Organization{}, org.ErrSlugExists
		}
	}
	repo.org.rows[o.ID] = &o
	return o, nil
}

func (repo *orgRepository) QueryOrgs(context.Context) ([]org.Organization, error) {
	repo.org.RLock()
	defer repo.org.RUnlock()

	orgs := repo.org.all()
	sortRows(orgs, nil, []core.DBOrdering{{Field: "created_at", Ascending: true}}, func(a, b org.Organization, _ string) int {
		return compareTime(a.CreatedAt, b.CreatedAt)
	})
	return orgs, nil
}

func (repo *orgRepository) GetOrgByID(_ context.Context, id string) (org.Organization, error) {
	repo.org.RLock()
	defer repo.org.RUnlock()

	if o, ok := repo.org.rows[id]; ok {
		return *o, nil
	}
	return org.Organization{}, org.ErrNotFound
}

func (repo *orgRepository) GetOrgBySlug(_ context.Context, slug string) (org.Organization, error) {
	repo.org.RLock()
	defer repo.org.RUnlock()

	for _, o := range repo.org.rows {
		if o.Slug == slug {
			return *o, nil
		}
	}
	return org.Organization{}, org.ErrNotFound
}

func (repo *orgRepository) UpdateOrg(_ context.Context, o org.Organization) (org.Organization, error) {
	repo.org.Lock()
	defer repo.org.Unlock()

	orig, ok := repo.org.rows[o.ID]
	if !ok {
		return org.Organization{}, org.ErrNotFound
	}
	orig.Name = o.Name
	orig.UpdatedAt = o.UpdatedAt
	return *orig, nil
}

func (repo *orgRepository) UpdateOrgSettings(_ context.Context, id string, s org.Settings) error {
	repo.org.Lock()
	defer repo.org.Unlock()

	orig, ok := repo.org.rows[id]
	if !ok {
		return org.ErrNotFound
	}
	orig.Settings = s
	return nil
}

func (repo *orgRepository) teamNameTaken(t org.Team) bool {
	for _, existing := range repo.team.rows {
		if existing.OrgID == t.OrgID && existing.ID != t.ID && existing.Name == t.Name {
			return true
		}
	}
	return false
}

func (repo *orgRepository) CreateTeam(_ context.Context, t org.Team) (org.Team, error) {
	repo.team.Lock()
	defer repo.team.Unlock()

	if repo.teamNameTaken(t) {
		return org.Team{}, org.ErrTeamExists
	}
	repo.team.rows[t.ID] = &t
	return t, nil
}

func (repo *orgRepository) QueryTeams(_ context.Context, orgID string) ([]org.Team, error) {
	repo.team.RLock()
	defer repo.team.RUnlock()

	teams := make([]org.Team, 0)
	for _, t := range repo.team.rows {
		if t.OrgID == orgID {
			teams = append(teams, *t)
		}
	}
	sortRows(teams, nil, []core.DBOrdering{{Field: "name", Ascending: true}}, func(a, b org.Team, _ string) int {
		return strings.Compare(a.Name, b.Name)
	})
	return teams, nil
}

func (repo *orgRepository) GetTeam(_ context.Context, orgID, id string) (org.Team, error) {
	repo.team.RLock()
	defer repo.team.RUnlock()

	if t, ok := repo.team.rows[id]; ok && t.OrgID == orgID {
		return *t, nil
	}
	return org.Team{}, org.ErrTeamNotFound
}

func (repo *orgRepository) UpdateTeam(_ context.Context, t org.Team) (org.Team, error) {
	repo.team.Lock()
	defer repo.team.Unlock()

	if orig, ok := repo.team.rows[t.ID]; !ok || orig.OrgID != t.OrgID {
		return org.Team{}, org.ErrTeamNotFound
	}
	if repo.teamNameTaken(t) {
		return org.Team{}, org.ErrTeamExists
	}
	repo.team.rows[t.ID] = &t
	return t, nil
}

func (repo *orgRepository) DeleteTeam(_ context.Context, orgID, id string) error {
	repo.team.Lock()
	defer repo.team.Unlock()

	t, ok := repo.team.rows[id]
	if !ok || t.OrgID != orgID {
		return nil
	}
	delete(repo.team.rows, id)

	repo.objective.Lock()
	defer repo.objective.Unlock()
	for _, o := range repo.objective.rows {
		if o.TeamID.String == id {
			o.TeamID = null.String{}
		}
	}
	return nil
}
