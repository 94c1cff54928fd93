package inmemdb

import (
	"context"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/okr"
)

type okrRepository struct {
	objective *table[okr.Objective]
	keyResult *table[okr.KeyResult]
	checkIn   *table[checkin.CheckIn]
}

var _ okr.Repository = (*okrRepository)(nil)

func NewOKRRepository(db *DB) okr.Repository {
	return &okrRepository{objective: db.objective, keyResult: db.keyResult, checkIn: db.checkIn}
}

// stored strips the computed fields of o.
func stored(o okr.Objective) *okr.Objective {
	o.KeyResults = nil
	o.Health = ""
	return &o
}

func (repo *okrRepository) CreateObjective(_ context.Context, o okr.Objective) (okr.Objective, error) {
	repo.objective.Lock()
	defer repo.objective.Unlock()

	repo.objective.rows[o.ID] = stored(o)
	return *repo.objective.rows[o.ID], nil
}

func (repo *okrRepository) QueryObjectives(_ context.Context, orgID string, filter okr.QueryFilter, ordering ...core.DBOrdering) ([]okr.Objective, error) {
	repo.objective.RLock()
	defer repo.objective.RUnlock()

	objs := make([]okr.Objective, 0)
	for _, o := range repo.objective.all() {
		switch {
		case o.OrgID != orgID,
			filter.Search != "" && !containsFold(o.Title, filter.Search),
			filter.OwnerID != "" && o.OwnerID != filter.OwnerID,
			filter.TeamID != "" && o.TeamID.String != filter.TeamID,
			filter.Period != "" && o.Period != filter.Period,
			len(filter.Statuses) > 0 && !core.StringInSlice(o.Status, filter.Statuses):
			continue
		}
		objs = append(objs, o)
	}

	sortRows(objs, ordering, []core.DBOrdering{{Field: "created_at"}}, compareObjectives)
	return objs, nil
}

func compareObjectives(a, b okr.Objective, field string) int {
	switch field {
	case "created_at":
		return compareTime(a.CreatedAt, b.CreatedAt)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "progress":
		return compareFloat(a.Progress, b.Progress)
	case "end_date":
		return compareTime(a.EndDate, b.EndDate)
	case "status":
		return strings.Compare(a.Status, b.Status)
	}
	return 0
}

func (repo *okrRepository) GetObjective(_ context.Context, orgID, id string) (okr.Objective, error) {
	repo.objective.RLock()
	defer repo.objective.RUnlock()

	if o, ok := repo.objective.rows[id]; ok && o.OrgID == orgID {
		return *o, nil
	}
	return okr.Objective{}, okr.ErrNotFound
}

func (repo *okrRepository) UpdateObjective(_ context.Context, o okr.Objective) (okr.Objective, error) {
	repo.objective.Lock()
	defer repo.objective.Unlock()

	if orig, ok := repo.objective.rows[o.ID]; !ok || orig.OrgID != o.OrgID {
		return okr.Objective{}, okr.ErrNotFound
	}
	repo.objective.rows[o.ID] = stored(o)
	return *repo.objective.rows[o.ID], nil
}

func (repo *okrRepository) DeleteObjective(_ context.Context, orgID, id string) error {
	repo.objective.Lock()
	defer repo.objective.Unlock()

	o, ok := repo.objective.rows[id]
	if !ok || o.OrgID != orgID {
		return nil
	}
	delete(repo.objective.rows, id)
	for _, child := range repo.objective.rows {
		if child.ParentID.String == id {
			child.ParentID = null.String{}
		}
	}

	repo.keyResult.Lock()
	defer repo.keyResult.Unlock()
	for krID, kr := range repo.keyResult.rows {
		if kr.ObjectiveID == id {
			delete(repo.keyResult.rows, krID)
			repo.deleteCheckIns(krID)
		}
	}
	return nil
}

func (repo *okrRepository) deleteCheckIns(keyResultID string) {
	repo.checkIn.Lock()
	defer repo.checkIn.Unlock()
	for id, ci := range repo.checkIn.rows {
		if ci.KeyResultID == keyResultID {
			delete(repo.checkIn.rows, id)
		}
	}
}

func (repo *okrRepository) CreateKeyResult(_ context.Context, kr okr.KeyResult) (okr.KeyResult, error) {
	repo.keyResult.Lock()
	defer repo.keyResult.Unlock()

	repo.keyResult.rows[kr.ID] = &kr
	return kr, nil
}

func (repo *okrRepository) QueryKeyResults(_ context.Context, orgID string, objectiveIDs ...string) ([]okr.KeyResult, error) {
	repo.keyResult.RLock()
	defer repo.keyResult.RUnlock()

	krs := make([]okr.KeyResult, 0)
	for _, kr := range repo.keyResult.all() {
		if kr.OrgID == orgID && core.StringInSlice(kr.ObjectiveID, objectiveIDs) {
			krs = append(krs, kr)
		}
	}
	sortRows(krs, nil, []core.DBOrdering{{Field: "created_at", Ascending: true}}, func(a, b okr.KeyResult, _ string) int {
		if c := compareTime(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return krs, nil
}

func (repo *okrRepository) GetKeyResult(_ context.Context, orgID, id string) (okr.KeyResult, error) {
	repo.keyResult.RLock()
	defer repo.keyResult.RUnlock()

	if kr, ok := repo.keyResult.rows[id]; ok && kr.OrgID == orgID {
		return *kr, nil
	}
	return okr.KeyResult{}, okr.ErrKeyResultNotFound
}

func (repo *okrRepository) UpdateKeyResult(_ context.Context, kr okr.KeyResult) (okr.KeyResult, error) {
	repo.keyResult.Lock()
	defer repo.keyResult.Unlock()

	if orig, ok := repo.keyResult.rows[kr.ID]; !ok || orig.OrgID != kr.OrgID {
		return okr.KeyResult{}, okr.ErrKeyResultNotFound
	}
	repo.keyResult.rows[kr.ID] = &kr
	return kr, nil
}

func (repo *okrRepository) DeleteKeyResult(_ context.Context, orgID, id string) error {
	repo.keyResult.Lock()
	defer repo.keyResult.Unlock()

	if kr, ok := repo.keyResult.rows[id]; ok && kr.OrgID == orgID {
		delete(repo.keyResult.rows, id)
		repo.deleteCheckIns(id)
	}
	return nil
}
