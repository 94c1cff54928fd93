package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/invitation"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/report"
	"github.com/trezcool/kipimo/core/user"
	emailsvc "github.com/trezcool/kipimo/services/email"
	logsvc "github.com/trezcool/kipimo/services/logger"
	"github.com/trezcool/kipimo/storage/database/inmem"
)

// Services is the set of domain services, wired on an in-memory database.
type Services struct {
	DB     *inmemdb.DB
	Logger core.Logger
	Mail   core.EmailService

	UserRepo       user.Repository
	OrgRepo        org.Repository
	OKRRepo        okr.Repository
	CheckInRepo    checkin.Repository
	NotifRepo      notification.Repository
	InvitationRepo invitation.Repository

	Users         user.Service
	Orgs          org.Service
	Notifications notification.Service
	OKRs          okr.Service
	CheckIns      checkin.Service
	Invitations   invitation.Service
	Reports       report.Service
}

// NewLogger returns a logger that neither prints nor reports.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(zap.NewNop(), core.Conf)
	logger.Enable(false)
	return logger
}

// NewServices wires fresh services. Emails are "sent" synchronously to emailsvc.SentMessages, which is reset.
func NewServices(t *testing.T) *Services {
	t.Helper()
	emailsvc.ResetSentMessages()

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor()
	logger := NewLogger()
	core.ParseEmailTemplates(logger)

	s := &Services{
		DB:             db,
		Logger:         logger,
		Mail:           emailsvc.NewConsoleServiceMock(core.Conf, logger),
		UserRepo:       inmemdb.NewUserRepository(db),
		OrgRepo:        inmemdb.NewOrgRepository(db),
		OKRRepo:        inmemdb.NewOKRRepository(db),
		CheckInRepo:    inmemdb.NewCheckInRepository(db),
		NotifRepo:      inmemdb.NewNotificationRepository(db),
		InvitationRepo: inmemdb.NewInvitationRepository(db),
	}
	s.Users = user.NewService(s.UserRepo, s.Mail)
	s.Orgs = org.NewService(tx, s.OrgRepo, s.Users)
	s.Notifications = notification.NewService(s.NotifRepo, s.Mail)
	s.OKRs = okr.NewService(tx, s.OKRRepo, s.Orgs, s.Users, s.Notifications)
	s.CheckIns = checkin.NewService(tx, s.CheckInRepo, s.OKRs, s.Orgs, s.Users, s.Notifications, logger)
	s.Invitations = invitation.NewService(tx, s.InvitationRepo, s.Orgs, s.Users, s.Notifications, s.Mail, logger)
	s.Reports = report.NewService(s.OKRs, s.CheckIns, s.Orgs, s.Users, s.Mail)
	return s
}

// FailingNotifier is a notification.Service whose Notify always fails with Err.
type FailingNotifier struct {
	notification.Service
	Err error
}

func (n FailingNotifier) Notify(context.Context, user.User, notification.NewNotification) (notification.Notification, error) {
	return notification.Notification{}, n.Err
}

// NewFailingNotifier wraps svc so that Notify fails.
func NewFailingNotifier(svc notification.Service) FailingNotifier {
	return FailingNotifier{Service: svc, Err: errors.New("notifications are down")}
}

func CreateOrg(t *testing.T, repo org.Repository, name string, settings ...org.Settings) org.Organization {
	t.Helper()
	now := time.Now().UTC()
	o := org.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      core.Slugify(name),
		Settings:  org.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(settings) > 0 {
		o.Settings = settings[0]
	}
	o, err := repo.CreateOrg(context.Background(), o)
	if err != nil {
		t.Fatalf("CreateOrg() failed: %v", err)
	}
	return o
}

func CreateTeam(t *testing.T, repo org.Repository, orgID, name string) org.Team {
	t.Helper()
	now := time.Now().UTC()
	team, err := repo.CreateTeam(context.Background(), org.Team{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTeam() failed: %v", err)
	}
	return team
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	orgID, name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateObjective stores an active objective of owner for period.
func CreateObjective(t *testing.T, repo okr.Repository, owner user.User, title, period string, createdAt ...time.Time) okr.Objective {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	start, end, ok := okr.PeriodBounds(period)
	if !ok {
		t.Fatalf("CreateObjective() failed: invalid period %q", period)
	}
	o, err := repo.CreateObjective(context.Background(), okr.Objective{
		ID:        uuid.NewString(),
		OrgID:     owner.OrgID,
		OwnerID:   owner.ID,
		Title:     title,
		Period:    period,
		StartDate: start,
		EndDate:   end,
		Status:    okr.StatusActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateObjective() failed: %v", err)
	}
	return o
}

// CreateKeyResult stores a number key result on obj, owned by the objective owner.
func CreateKeyResult(t *testing.T, repo okr.Repository, obj okr.Objective, title string, start, target, current, weight float64) okr.KeyResult {
	t.Helper()
	now := time.Now().UTC()
	kr := okr.KeyResult{
		ID:           uuid.NewString(),
		OrgID:        obj.OrgID,
		ObjectiveID:  obj.ID,
		OwnerID:      obj.OwnerID,
		Title:        title,
		MetricType:   okr.MetricNumber,
		StartValue:   start,
		TargetValue:  target,
		CurrentValue: current,
		Weight:       weight,
		Confidence:   null.Int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	kr.Progress = okr.KeyResultProgress(kr)
	kr, err := repo.CreateKeyResult(context.Background(), kr)
	if err != nil {
		t.Fatalf("CreateKeyResult() failed: %v", err)
	}
	return kr
}

func FloatPtr(f float64) *float64 { return &f }
func StrPtr(s string) *string     { return &s }
func BoolPtr(b bool) *bool        { return &b }
func IntPtr(i int) *int           { return &i }
