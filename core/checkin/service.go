package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

var (
	// errors
	errObjectiveClosed = errors.New("cannot check in on a closed objective")

	// NowFunc is used to date check-ins; tests may replace it.
	NowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	Repository interface {
		CreateCheckIn(ctx context.Context, ci CheckIn) (CheckIn, error)
		// QueryCheckIns returns the matching check-ins, newest first.
		QueryCheckIns(ctx context.Context, orgID string, filter QueryFilter) ([]CheckIn, error)
		// KeyResultIDsWithCheckIn returns the distinct IDs of key results checked in on during week.
		KeyResultIDsWithCheckIn(ctx context.Context, orgID, week string) ([]string, error)
	}

	Service interface {
		// Create records a check-in, updating the key result and its objective progress.
		Create(ctx context.Context, actor user.User, kr okr.KeyResult, nc NewCheckIn) (CheckIn, error)
		QueryByKeyResult(ctx context.Context, orgID, keyResultID string) ([]CheckIn, error)
		QueryByWeek(ctx context.Context, orgID, week string) ([]CheckIn, error)
		// CheckedIn returns the set of key result IDs checked in on during week.
		CheckedIn(ctx context.Context, orgID, week string) (map[string]bool, error)
		HasCheckIn(ctx context.Context, orgID, keyResultID, week string) (bool, error)
		// CurrentWeek returns the ISO week at now in the organization timezone.
		CurrentWeek(ctx context.Context, orgID string) (string, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		okrSvc   okr.Service
		orgSvc   org.Service
		usrSvc   user.Service
		notifSvc notification.Service
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	okrSvc okr.Service,
	orgSvc org.Service,
	usrSvc user.Service,
	notifSvc notification.Service,
	logger core.Logger,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		okrSvc:   okrSvc,
		orgSvc:   orgSvc,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		logger:   logger,
	}
}

func (svc *service) CurrentWeek(ctx context.Context, orgID string) (string, error) {
	o, err := svc.orgSvc.GetByID(ctx, orgID)
	if err != nil {
		return "", errors.Wrap(err, "finding organization")
	}
	return ISOWeek(NowFunc(), o.Settings.Location()), nil
}

func (svc *service) Create(ctx context.Context, actor user.User, kr okr.KeyResult, nc NewCheckIn) (CheckIn, error) {
	obj, err := svc.okrSvc.Get(ctx, kr.OrgID, kr.ObjectiveID)
	if err != nil {
		return CheckIn{}, errors.Wrap(err, "finding objective")
	}
	if !svc.okrSvc.CanEditKeyResult(actor, obj, kr) {
		return CheckIn{}, core.ErrForbidden
	}
	if obj.IsClosed() {
		return CheckIn{}, core.NewValidationError(nil, core.FieldError{Field: "key_result_id", Error: errObjectiveClosed.Error()})
	}

	week, err := svc.CurrentWeek(ctx, kr.OrgID)
	if err != nil {
		return CheckIn{}, err
	}

	var ci CheckIn
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ci, err = svc.repo.CreateCheckIn(ctx, CheckIn{
			ID:          uuid.NewString(),
			OrgID:       kr.OrgID,
			KeyResultID: kr.ID,
			UserID:      actor.ID,
			Value:       *nc.Value,
			Confidence:  nc.Confidence,
			Comment:     nc.Comment,
			Week:        week,
			CreatedAt:   NowFunc(),
		})
		if err != nil {
			return errors.Wrap(err, "creating check-in")
		}
		_, err = svc.okrSvc.RecordValue(ctx, kr, ci.Value, ci.Confidence)
		return errors.Wrap(err, "recording key result value")
	})
	if err != nil {
		return CheckIn{}, err
	}

	// the check-in is committed: a failed notification must not report it as failed
	if obj.OwnerID != actor.ID {
		if err = svc.notifyOwner(ctx, actor, obj, kr, ci); err != nil {
			svc.logger.Error("check-in: notifying objective owner", err, map[string]interface{}{
				"check_in_id":  ci.ID,
				"objective_id": obj.ID,
			}, actor)
		}
	}
	return ci, nil
}

func (svc *service) notifyOwner(ctx context.Context, actor user.User, obj okr.Objective, kr okr.KeyResult, ci CheckIn) error {
	owner, err := svc.usrSvc.GetOrgUser(ctx, obj.OrgID, obj.OwnerID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding objective owner")
	}
	_, err = svc.notifSvc.Notify(ctx, owner, notification.NewNotification{
		Kind:  notification.KindCheckInCreated,
		Title: "New check-in",
		Body:  fmt.Sprintf("%s checked in %g on %q (confidence %d/10).", actor.Name, ci.Value, kr.Title, ci.Confidence),
		Link:  "/objectives/" + obj.ID,
	})
	return errors.Wrap(err, "notifying objective owner")
}

func (svc *service) QueryByKeyResult(ctx context.Context, orgID, keyResultID string) ([]CheckIn, error) {
	return svc.repo.QueryCheckIns(ctx, orgID, QueryFilter{KeyResultID: keyResultID})
}

func (svc *service) QueryByWeek(ctx context.Context, orgID, week string) ([]CheckIn, error) {
	if !core.WeekRegex.MatchString(week) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "week", Error: "invalid ISO week"})
	}
	return svc.repo.QueryCheckIns(ctx, orgID, QueryFilter{Week: week})
}

func (svc *service) CheckedIn(ctx context.Context, orgID, week string) (map[string]bool, error) {
	ids, err := svc.repo.KeyResultIDsWithCheckIn(ctx, orgID, week)
	if err != nil {
		return nil, errors.Wrap(err, "querying checked in key results")
	}
	checked := make(map[string]bool, len(ids))
	for _, id := range ids {
		checked[id] = true
	}
	return checked, nil
}

func (svc *service) HasCheckIn(ctx context.Context, orgID, keyResultID, week string) (bool, error) {
	checked, err := svc.CheckedIn(ctx, orgID, week)
	if err != nil {
		return false, err
	}
	return checked[keyResultID], nil
}
