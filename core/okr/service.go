package okr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("objective")
	ErrKeyResultNotFound = core.NewNotFoundError("key result")

	// NowFunc is used to compute health & scoring; tests may replace it.
	NowFunc = func() time.Time { return time.Now().UTC() }

	maxParentDepth = 20
)

type (
	Repository interface {
		CreateObjective(ctx context.Context, o Objective) (Objective, error)
		// QueryObjectives applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Objective.Title.
		QueryObjectives(ctx context.Context, orgID string, filter QueryFilter, ordering ...core.DBOrdering) ([]Objective, error)
		GetObjective(ctx context.Context, orgID, id string) (Objective, error)
		UpdateObjective(ctx context.Context, o Objective) (Objective, error)
		// DeleteObjective also deletes its key results.
		DeleteObjective(ctx context.Context, orgID, id string) error

		CreateKeyResult(ctx context.Context, kr KeyResult) (KeyResult, error)
		// QueryKeyResults returns the key results of the given objectives, oldest first.
		QueryKeyResults(ctx context.Context, orgID string, objectiveIDs ...string) ([]KeyResult, error)
		GetKeyResult(ctx context.Context, orgID, id string) (KeyResult, error)
		UpdateKeyResult(ctx context.Context, kr KeyResult) (KeyResult, error)
		DeleteKeyResult(ctx context.Context, orgID, id string) error
	}

	Service interface {
		CanEditObjective(actor user.User, o Objective) bool
		CanEditKeyResult(actor user.User, o Objective, kr KeyResult) bool

		Create(ctx context.Context, actor user.User, no NewObjective) (Objective, error)
		// Query returns objectives with their key results & health.
		Query(ctx context.Context, orgID string, filter QueryFilter, ordering []core.DBOrdering) ([]Objective, error)
		Get(ctx context.Context, orgID, id string) (Objective, error)
		Update(ctx context.Context, actor user.User, o Objective, uo UpdateObjective) (Objective, error)
		Delete(ctx context.Context, actor user.User, o Objective) error

		AddKeyResult(ctx context.Context, actor user.User, o Objective, nkr NewKeyResult) (KeyResult, error)
		GetKeyResult(ctx context.Context, orgID, id string) (KeyResult, error)
		UpdateKeyResult(ctx context.Context, actor user.User, kr KeyResult, ukr UpdateKeyResult) (KeyResult, error)
		DeleteKeyResult(ctx context.Context, actor user.User, kr KeyResult) error

		// RecordValue sets the current value & confidence of kr and rolls the progress up to its objective.
		RecordValue(ctx context.Context, kr KeyResult, value float64, confidence int) (KeyResult, error)
		// Recompute refreshes the progress of o and scores it once its end date has passed.
		Recompute(ctx context.Context, o Objective, now time.Time) (Objective, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		orgSvc   org.Service
		usrSvc   user.Service
		notifSvc notification.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	orgSvc org.Service,
	usrSvc user.Service,
	notifSvc notification.Service,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		orgSvc:   orgSvc,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
	}
}

func (svc *service) CanEditObjective(actor user.User, o Objective) bool {
	if actor.OrgID != o.OrgID {
		return false
	}
	return actor.IsAdmin() || actor.IsManager() || actor.ID == o.OwnerID
}

func (svc *service) CanEditKeyResult(actor user.User, o Objective, kr KeyResult) bool {
	return svc.CanEditObjective(actor, o) || (actor.OrgID == kr.OrgID && actor.ID == kr.OwnerID)
}

// orgUser returns the user identified by id in orgID, reporting unknown users as a validation error on field.
func (svc *service) orgUser(ctx context.Context, orgID, id, field string) (user.User, error) {
	usr, err := svc.usrSvc.GetOrgUser(ctx, orgID, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewValidationError(err, core.FieldError{Field: field, Error: "unknown user"})
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return usr, nil
}

func (svc *service) checkTeam(ctx context.Context, orgID, teamID string) error {
	if teamID == "" {
		return nil
	}
	if _, err := svc.orgSvc.GetTeam(ctx, orgID, teamID); err != nil {
		if errors.Cause(err) == org.ErrTeamNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "team_id", Error: "unknown team"})
		}
		return errors.Wrap(err, "finding team")
	}
	return nil
}

// checkParent makes sure parentID exists in orgID and that aligning objID under it creates no cycle.
func (svc *service) checkParent(ctx context.Context, orgID, objID, parentID string) error {
	if parentID == "" {
		return nil
	}
	invalid := func(err error, msg string) error {
		return core.NewValidationError(err, core.FieldError{Field: "parent_id", Error: msg})
	}

	id := parentID
	for i := 0; i < maxParentDepth && id != ""; i++ {
		if id == objID {
			return invalid(nil, "an objective cannot be aligned under itself")
		}
		parent, err := svc.repo.GetObjective(ctx, orgID, id)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return invalid(err, "unknown objective")
			}
			return errors.Wrap(err, "finding parent objective")
		}
		id = parent.ParentID.String
	}
	return nil
}

func (svc *service) Create(ctx context.Context, actor user.User, no NewObjective) (Objective, error) {
	ownerID := no.OwnerID
	if ownerID == "" {
		ownerID = actor.ID
	}
	if actor.IsEmployee() && ownerID != actor.ID {
		return Objective{}, core.ErrForbidden
	}
	owner, err := svc.orgUser(ctx, actor.OrgID, ownerID, "owner_id")
	if err != nil {
		return Objective{}, err
	}
	if err = svc.checkTeam(ctx, actor.OrgID, no.TeamID); err != nil {
		return Objective{}, err
	}
	if err = svc.checkParent(ctx, actor.OrgID, "", no.ParentID); err != nil {
		return Objective{}, err
	}

	status := no.Status
	if status == "" {
		status = StatusActive
	}
	now := time.Now().UTC()
	o, err := svc.repo.CreateObjective(ctx, Objective{
		ID:          uuid.NewString(),
		OrgID:       actor.OrgID,
		OwnerID:     owner.ID,
		TeamID:      null.NewString(no.TeamID, no.TeamID != ""),
		ParentID:    null.NewString(no.ParentID, no.ParentID != ""),
		Title:       no.Title,
		Description: no.Description,
		Period:      no.Period,
		StartDate:   no.StartDate.UTC(),
		EndDate:     no.EndDate.UTC(),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Objective{}, errors.Wrap(err, "creating objective")
	}

	svc.notifyAssigned(ctx, actor, owner, o)
	o.KeyResults = []KeyResult{}
	o.Health = Health(o, NowFunc())
	return o, nil
}

func (svc *service) notifyAssigned(ctx context.Context, actor, owner user.User, o Objective) {
	if owner.ID == actor.ID {
		return
	}
	// the objective is saved; a failed notification is not worth failing the request.
	_, _ = svc.notifSvc.Notify(ctx, owner, notification.NewNotification{
		Kind:  notification.KindObjectiveAssigned,
		Title: "New objective assigned",
		Body:  fmt.Sprintf("%s assigned you the objective %q for %s.", actor.Name, o.Title, o.Period),
		Link:  objectiveLink(o.ID),
		Email: true,
	})
}

func objectiveLink(id string) string {
	return "/objectives/" + id
}

func (svc *service) Query(ctx context.Context, orgID string, filter QueryFilter, ordering []core.DBOrdering) ([]Objective, error) {
	objs, err := svc.repo.QueryObjectives(ctx, orgID, filter, ordering...)
	if err != nil {
		return nil, errors.Wrap(err, "querying objectives")
	}
	if len(objs) == 0 {
		return objs, nil
	}

	ids := make([]string, 0, len(objs))
	for _, o := range objs {
		ids = append(ids, o.ID)
	}
	krs, err := svc.repo.QueryKeyResults(ctx, orgID, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying key results")
	}
	byObjective := make(map[string][]KeyResult, len(objs))
	for _, kr := range krs {
		byObjective[kr.ObjectiveID] = append(byObjective[kr.ObjectiveID], kr)
	}

	now := NowFunc()
	for i := range objs {
		objs[i].KeyResults = byObjective[objs[i].ID]
		if objs[i].KeyResults == nil {
			objs[i].KeyResults = []KeyResult{}
		}
		objs[i].Health = Health(objs[i], now)
	}
	return objs, nil
}

func (svc *service) Get(ctx context.Context, orgID, id string) (Objective, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Objective{}, ErrNotFound
	}
	o, err := svc.repo.GetObjective(ctx, orgID, id)
	if err != nil {
		return Objective{}, err
	}
	if o.KeyResults, err = svc.repo.QueryKeyResults(ctx, orgID, o.ID); err != nil {
		return Objective{}, errors.Wrap(err, "querying key results")
	}
	if o.KeyResults == nil {
		o.KeyResults = []KeyResult{}
	}
	o.Health = Health(o, NowFunc())
	return o, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, o Objective, uo UpdateObjective) (Objective, error) {
	if !svc.CanEditObjective(actor, o) {
		return Objective{}, core.ErrForbidden
	}

	var newOwner *user.User
	if uo.OwnerID != "" && uo.OwnerID != o.OwnerID {
		if actor.IsEmployee() {
			return Objective{}, core.ErrForbidden
		}
		owner, err := svc.orgUser(ctx, o.OrgID, uo.OwnerID, "owner_id")
		if err != nil {
			return Objective{}, err
		}
		newOwner = &owner
		o.OwnerID = owner.ID
	}
	if uo.TeamID != nil {
		if err := svc.checkTeam(ctx, o.OrgID, *uo.TeamID); err != nil {
			return Objective{}, err
		}
		o.TeamID = null.NewString(*uo.TeamID, *uo.TeamID != "")
	}
	if uo.ParentID != nil {
		if err := svc.checkParent(ctx, o.OrgID, o.ID, *uo.ParentID); err != nil {
			return Objective{}, err
		}
		o.ParentID = null.NewString(*uo.ParentID, *uo.ParentID != "")
	}

	if uo.Title != "" {
		o.Title = uo.Title
	}
	if uo.Description != nil {
		o.Description = *uo.Description
	}
	if uo.Period != "" {
		o.Period = uo.Period
	}
	if uo.StartDate != nil {
		o.StartDate = uo.StartDate.UTC()
	}
	if uo.EndDate != nil {
		o.EndDate = uo.EndDate.UTC()
	}
	if uo.Status != "" && uo.Status != o.Status {
		o.Status = uo.Status
		if o.Status == StatusCompleted && !o.Score.Valid {
			o.Score = null.Float64From(Score(o.Progress))
		}
		if o.Status == StatusActive || o.Status == StatusDraft {
			o.Score = null.Float64{}
		}
	}
	o.UpdatedAt = time.Now().UTC()

	krs := o.KeyResults
	updated, err := svc.repo.UpdateObjective(ctx, o)
	if err != nil {
		return Objective{}, errors.Wrap(err, "updating objective")
	}
	if newOwner != nil {
		svc.notifyAssigned(ctx, actor, *newOwner, updated)
	}
	updated.KeyResults = krs
	if updated.KeyResults == nil {
		updated.KeyResults = []KeyResult{}
	}
	updated.Health = Health(updated, NowFunc())
	return updated, nil
}

func (svc *service) Delete(ctx context.Context, actor user.User, o Objective) error {
	if !svc.CanEditObjective(actor, o) {
		return core.ErrForbidden
	}
	return svc.repo.DeleteObjective(ctx, o.OrgID, o.ID)
}

// refreshProgress recomputes the progress of the objective identified by objectiveID from its key results.
func (svc *service) refreshProgress(ctx context.Context, orgID, objectiveID string) (Objective, error) {
	o, err := svc.repo.GetObjective(ctx, orgID, objectiveID)
	if err != nil {
		return Objective{}, errors.Wrap(err, "finding objective")
	}
	krs, err := svc.repo.QueryKeyResults(ctx, orgID, objectiveID)
	if err != nil {
		return Objective{}, errors.Wrap(err, "querying key results")
	}
	progress := ObjectiveProgress(krs)
	if progress == o.Progress {
		o.KeyResults = krs
		return o, nil
	}
	o.Progress = progress
	o.UpdatedAt = time.Now().UTC()
	if o, err = svc.repo.UpdateObjective(ctx, o); err != nil {
		return Objective{}, errors.Wrap(err, "updating objective progress")
	}
	o.KeyResults = krs
	return o, nil
}

func (svc *service) AddKeyResult(ctx context.Context, actor user.User, o Objective, nkr NewKeyResult) (KeyResult, error) {
	if !svc.CanEditObjective(actor, o) {
		return KeyResult{}, core.ErrForbidden
	}
	ownerID := nkr.OwnerID
	if ownerID == "" {
		ownerID = o.OwnerID
	}
	if _, err := svc.orgUser(ctx, o.OrgID, ownerID, "owner_id"); err != nil {
		return KeyResult{}, err
	}

	weight := 1.0
	if nkr.Weight != nil {
		weight = *nkr.Weight
	}
	now := time.Now().UTC()
	kr := KeyResult{
		ID:           uuid.NewString(),
		OrgID:        o.OrgID,
		ObjectiveID:  o.ID,
		OwnerID:      ownerID,
		Title:        nkr.Title,
		MetricType:   nkr.MetricType,
		StartValue:   nkr.StartValue,
		TargetValue:  *nkr.TargetValue,
		CurrentValue: nkr.StartValue,
		Weight:       weight,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	kr.Progress = KeyResultProgress(kr)

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if kr, err = svc.repo.CreateKeyResult(ctx, kr); err != nil {
			return errors.Wrap(err, "creating key result")
		}
		_, err = svc.refreshProgress(ctx, o.OrgID, o.ID)
		return err
	})
	if err != nil {
		return KeyResult{}, err
	}
	return kr, nil
}

func (svc *service) GetKeyResult(ctx context.Context, orgID, id string) (KeyResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return KeyResult{}, ErrKeyResultNotFound
	}
	return svc.repo.GetKeyResult(ctx, orgID, id)
}

func (svc *service) objectiveOf(ctx context.Context, kr KeyResult) (Objective, error) {
	o, err := svc.repo.GetObjective(ctx, kr.OrgID, kr.ObjectiveID)
	return o, errors.Wrap(err, "finding objective")
}

func (svc *service) UpdateKeyResult(ctx context.Context, actor user.User, kr KeyResult, ukr UpdateKeyResult) (KeyResult, error) {
	o, err := svc.objectiveOf(ctx, kr)
	if err != nil {
		return KeyResult{}, err
	}
	if !svc.CanEditKeyResult(actor, o, kr) {
		return KeyResult{}, core.ErrForbidden
	}
	if ukr.OwnerID != "" && ukr.OwnerID != kr.OwnerID {
		if !svc.CanEditObjective(actor, o) {
			return KeyResult{}, core.ErrForbidden
		}
		if _, err = svc.orgUser(ctx, kr.OrgID, ukr.OwnerID, "owner_id"); err != nil {
			return KeyResult{}, err
		}
		kr.OwnerID = ukr.OwnerID
	}

	if ukr.Title != "" {
		kr.Title = ukr.Title
	}
	if ukr.MetricType != "" {
		kr.MetricType = ukr.MetricType
	}
	if ukr.StartValue != nil {
		kr.StartValue = *ukr.StartValue
	}
	if ukr.TargetValue != nil {
		kr.TargetValue = *ukr.TargetValue
	}
	if ukr.Weight != nil {
		kr.Weight = *ukr.Weight
	}
	kr.Progress = KeyResultProgress(kr)
	kr.UpdatedAt = time.Now().UTC()

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if kr, err = svc.repo.UpdateKeyResult(ctx, kr); err != nil {
			return errors.Wrap(err, "updating key result")
		}
		_, err = svc.refreshProgress(ctx, kr.OrgID, kr.ObjectiveID)
		return err
	})
	if err != nil {
		return KeyResult{}, err
	}
	return kr, nil
}

func (svc *service) DeleteKeyResult(ctx context.Context, actor user.User, kr KeyResult) error {
	o, err := svc.objectiveOf(ctx, kr)
	if err != nil {
		return err
	}
	if !svc.CanEditObjective(actor, o) {
		return core.ErrForbidden
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeleteKeyResult(ctx, kr.OrgID, kr.ID); err != nil {
			return errors.Wrap(err, "deleting key result")
		}
		_, err := svc.refreshProgress(ctx, kr.OrgID, kr.ObjectiveID)
		return err
	})
}

func (svc *service) RecordValue(ctx context.Context, kr KeyResult, value float64, confidence int) (KeyResult, error) {
	kr.CurrentValue = value
	kr.Confidence = null.IntFrom(confidence)
	kr.Progress = KeyResultProgress(kr)
	kr.UpdatedAt = time.Now().UTC()

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if kr, err = svc.repo.UpdateKeyResult(ctx, kr); err != nil {
			return errors.Wrap(err, "updating key result")
		}
		_, err = svc.refreshProgress(ctx, kr.OrgID, kr.ObjectiveID)
		return err
	})
	if err != nil {
		return KeyResult{}, err
	}
	return kr, nil
}

func (svc *service) Recompute(ctx context.Context, o Objective, now time.Time) (Objective, error) {
	var scored bool
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = svc.refreshProgress(ctx, o.OrgID, o.ID); err != nil {
			return err
		}
		if o.Status != StatusActive || now.Before(o.EndDate) {
			return nil
		}
		krs := o.KeyResults
		o.Status = StatusCompleted
		o.Score = null.Float64From(Score(o.Progress))
		o.UpdatedAt = time.Now().UTC()
		if o, err = svc.repo.UpdateObjective(ctx, o); err != nil {
			return errors.Wrap(err, "scoring objective")
		}
		o.KeyResults = krs
		scored = true
		return nil
	})
	if err != nil {
		return Objective{}, err
	}

	if scored {
		if err = svc.notifyScored(ctx, o); err != nil {
			return Objective{}, err
		}
	}
	o.Health = Health(o, now)
	return o, nil
}

func (svc *service) notifyScored(ctx context.Context, o Objective) error {
	owner, err := svc.usrSvc.GetOrgUser(ctx, o.OrgID, o.OwnerID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding objective owner")
	}
	_, err = svc.notifSvc.Notify(ctx, owner, notification.NewNotification{
		Kind:  notification.KindObjectiveScored,
		Title: "Objective scored",
		Body:  fmt.Sprintf("%q ended with a score of %.1f (%.0f%%).", o.Title, o.Score.Float64, o.Progress),
		Link:  objectiveLink(o.ID),
		Email: true,
	})
	return errors.Wrap(err, "notifying objective owner")
}
