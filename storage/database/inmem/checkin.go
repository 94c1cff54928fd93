package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
)

type checkInRepository struct {
	db *table[checkin.CheckIn]
}

var _ checkin.Repository = (*checkInRepository)(nil)

func NewCheckInRepository(db *DB) checkin.Repository {
	return &checkInRepository{db: db.checkIn}
}

func (repo *checkInRepository) CreateCheckIn(_ context.Context, ci checkin.CheckIn) (checkin.CheckIn, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.rows[ci.ID] = &ci
	return ci, nil
}

func (repo *checkInRepository) QueryCheckIns(_ context.Context, orgID string, filter checkin.QueryFilter) ([]checkin.CheckIn, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cis := make([]checkin.CheckIn, 0)
	for _, ci := range repo.db.all() {
		switch {
		case ci.OrgID != orgID,
			filter.KeyResultID != "" && ci.KeyResultID != filter.KeyResultID,
			filter.UserID != "" && ci.UserID != filter.UserID,
			filter.Week != "" && ci.Week != filter.Week:
			continue
		}
		cis = append(cis, ci)
	}
	sortRows(cis, nil, []core.DBOrdering{{Field: "created_at"}}, func(a, b checkin.CheckIn, _ string) int {
		return compareTime(a.CreatedAt, b.CreatedAt)
	})
	return cis, nil
}

func (repo *checkInRepository) KeyResultIDsWithCheckIn(_ context.Context, orgID, week string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	for _, ci := range repo.db.rows {
		if ci.OrgID == orgID && ci.Week == week {
			seen[ci.KeyResultID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
