package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/okr"
)

var (
	objectiveColumns = []string{
		"id", "org_id", "owner_id", "team_id", "parent_id", "title", "description", "period",
		"start_date", "end_date", "status", "progress", "score", "created_at", "updated_at",
	}
	keyResultColumns = []string{
		"id", "org_id", "objective_id", "owner_id", "title", "metric_type", "start_value", "target_value",
		"current_value", "weight", "progress", "confidence", "created_at", "updated_at",
	}
)

type okrRepository struct {
	repo
}

var _ okr.Repository = (*okrRepository)(nil)

func NewOKRRepository(db *sqlx.DB) okr.Repository {
	return &okrRepository{repo{db: db}}
}

func (r *okrRepository) CreateObjective(ctx context.Context, o okr.Objective) (okr.Objective, error) {
	qb := psql.Insert("objective").
		Columns(objectiveColumns...).
		Values(
			o.ID, o.OrgID, o.OwnerID, o.TeamID, o.ParentID, o.Title, o.Description, o.Period,
			o.StartDate, o.EndDate, o.Status, o.Progress, o.Score, o.CreatedAt, o.UpdatedAt,
		)
	if _, err := r.execute(ctx, qb); err != nil {
		return okr.Objective{}, errors.Wrap(err, "inserting objective")
	}
	return o, nil
}

func (r *okrRepository) QueryObjectives(ctx context.Context, orgID string, filter okr.QueryFilter, ordering ...core.DBOrdering) ([]okr.Objective, error) {
	qb := psql.Select(objectiveColumns...).From("objective").Where(sq.Eq{"org_id": orgID})
	if filter.Search != "" {
		qb = qb.Where(sq.ILike{"title": ilike(filter.Search)})
	}
	if filter.OwnerID != "" {
		qb = qb.Where(sq.Eq{"owner_id": filter.OwnerID})
	}
	if filter.TeamID != "" {
		qb = qb.Where(sq.Eq{"team_id": filter.TeamID})
	}
	if filter.Period != "" {
		qb = qb.Where(sq.Eq{"period": filter.Period})
	}
	if len(filter.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filter.Statuses})
	}
	qb = qb.OrderBy(core.OrderingClauses(ordering, core.DBOrdering{Field: "created_at"})...)

	objs := make([]okr.Objective, 0)
	if err := r.selectRows(ctx, &objs, qb); err != nil {
		return nil, errors.Wrap(err, "selecting objectives")
	}
	return objs, nil
}

func (r *okrRepository) GetObjective(ctx context.Context, orgID, id string) (okr.Objective, error) {
	var o okr.Objective
	qb := psql.Select(objectiveColumns...).From("objective").Where(sq.Eq{"id": id, "org_id": orgID})
	err := r.get(ctx, &o, qb, okr.ErrNotFound)
	return o, err
}

func (r *okrRepository) UpdateObjective(ctx context.Context, o okr.Objective) (okr.Objective, error) {
	qb := psql.Update("objective").
		SetMap(map[string]interface{}{
			"owner_id":    o.OwnerID,
			"team_id":     o.TeamID,
			"parent_id":   o.ParentID,
			"title":       o.Title,
			"description": o.Description,
			"period":      o.Period,
			"start_date":  o.StartDate,
			"end_date":    o.EndDate,
			"status":      o.Status,
			"progress":    o.Progress,
			"score":       o.Score,
			"updated_at":  o.UpdatedAt,
		}).
		Where(sq.Eq{"id": o.ID, "org_id": o.OrgID})
	if err := r.executeOne(ctx, qb, okr.ErrNotFound); err != nil {
		return okr.Objective{}, errors.Wrap(err, "updating objective")
	}
	o.KeyResults = nil
	o.Health = ""
	return o, nil
}

// DeleteObjective relies on ON DELETE CASCADE for key results & check-ins.
func (r *okrRepository) DeleteObjective(ctx context.Context, orgID, id string) error {
	_, err := r.execute(ctx, psql.Delete("objective").Where(sq.Eq{"id": id, "org_id": orgID}))
	return errors.Wrap(err, "deleting objective")
}

func (r *okrRepository) CreateKeyResult(ctx context.Context, kr okr.KeyResult) (okr.KeyResult, error) {
	qb := psql.Insert("key_result").
		Columns(keyResultColumns...).
		Values(
			kr.ID, kr.OrgID, kr.ObjectiveID, kr.OwnerID, kr.Title, kr.MetricType, kr.StartValue, kr.TargetValue,
			kr.CurrentValue, kr.Weight, kr.Progress, kr.Confidence, kr.CreatedAt, kr.UpdatedAt,
		)
	if _, err := r.execute(ctx, qb); err != nil {
		return okr.KeyResult{}, errors.Wrap(err, "inserting key result")
	}
	return kr, nil
}

func (r *okrRepository) QueryKeyResults(ctx context.Context, orgID string, objectiveIDs ...string) ([]okr.KeyResult, error) {
	krs := make([]okr.KeyResult, 0)
	if len(objectiveIDs) == 0 {
		return krs, nil
	}
	qb := psql.Select(keyResultColumns...).
		From("key_result").
		Where(sq.Eq{"org_id": orgID, "objective_id": objectiveIDs}).
		OrderBy("created_at ASC", "id ASC")
	if err := r.selectRows(ctx, &krs, qb); err != nil {
		return nil, errors.Wrap(err, "selecting key results")
	}
	return krs, nil
}

func (r *okrRepository) GetKeyResult(ctx context.Context, orgID, id string) (okr.KeyResult, error) {
	var kr okr.KeyResult
	qb := psql.Select(keyResultColumns...).From("key_result").Where(sq.Eq{"id": id, "org_id": orgID})
	err := r.get(ctx, &kr, qb, okr.ErrKeyResultNotFound)
	return kr, err
}

func (r *okrRepository) UpdateKeyResult(ctx context.Context, kr okr.KeyResult) (okr.KeyResult, error) {
	qb := psql.Update("key_result").
		SetMap(map[string]interface{}{
			"owner_id":      kr.OwnerID,
			"title":         kr.Title,
			"metric_type":   kr.MetricType,
			"start_value":   kr.StartValue,
			"target_value":  kr.TargetValue,
			"current_value": kr.CurrentValue,
			"weight":        kr.Weight,
			"progress":      kr.Progress,
			"confidence":    kr.Confidence,
			"updated_at":    kr.UpdatedAt,
		}).
		Where(sq.Eq{"id": kr.ID, "org_id": kr.OrgID})
	if err := r.executeOne(ctx, qb, okr.ErrKeyResultNotFound); err != nil {
		return okr.KeyResult{}, errors.Wrap(err, "updating key result")
	}
	return kr, nil
}

func (r *okrRepository) DeleteKeyResult(ctx context.Context, orgID, id string) error {
	_, err := r.execute(ctx, psql.Delete("key_result").Where(sq.Eq{"id": id, "org_id": orgID}))
	return errors.Wrap(err, "deleting key result")
}
