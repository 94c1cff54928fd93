package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/checkin"
)

var checkInColumns = []string{
	"id", "org_id", "key_result_id", "user_id", "value", "confidence", "comment", "week", "created_at",
}

type checkInRepository struct {
	repo
}

var _ checkin.Repository = (*checkInRepository)(nil)

func NewCheckInRepository(db *sqlx.DB) checkin.Repository {
	return &checkInRepository{repo{db: db}}
}

func (r *checkInRepository) CreateCheckIn(ctx context.Context, ci checkin.CheckIn) (checkin.CheckIn, error) {
	qb := psql.Insert("check_in").
		Columns(checkInColumns...).
		Values(ci.ID, ci.OrgID, ci.KeyResultID, ci.UserID, ci.Value, ci.Confidence, ci.Comment, ci.Week, ci.CreatedAt)
	if _, err := r.execute(ctx, qb); err != nil {
		return checkin.CheckIn{}, errors.Wrap(err, "inserting check-in")
	}
	return ci, nil
}

func (r *checkInRepository) QueryCheckIns(ctx context.Context, orgID string, filter checkin.QueryFilter) ([]checkin.CheckIn, error) {
	where := sq.Eq{"org_id": orgID}
	if filter.KeyResultID != "" {
		where["key_result_id"] = filter.KeyResultID
	}
	if filter.UserID != "" {
		where["user_id"] = filter.UserID
	}
	if filter.Week != "" {
		where["week"] = filter.Week
	}

	cis := make([]checkin.CheckIn, 0)
	qb := psql.Select(checkInColumns...).From("check_in").Where(where).OrderBy("created_at DESC")
	if err := r.selectRows(ctx, &cis, qb); err != nil {
		return nil, errors.Wrap(err, "selecting check-ins")
	}
	return cis, nil
}

func (r *checkInRepository) KeyResultIDsWithCheckIn(ctx context.Context, orgID, week string) ([]string, error) {
	ids := make([]string, 0)
	qb := psql.Select("DISTINCT key_result_id").
		From("check_in").
		Where(sq.Eq{"org_id": orgID, "week": week}).
		OrderBy("key_result_id")
	if err := r.selectRows(ctx, &ids, qb); err != nil {
		return nil, errors.Wrap(err, "selecting checked in key results")
	}
	return ids, nil
}
