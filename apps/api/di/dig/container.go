package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/kipimo/apps/api/echo"
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
	metricsvc "github.com/trezcool/kipimo/services/metrics"
	jobsvc "github.com/trezcool/kipimo/services/scheduler"
	"github.com/trezcool/kipimo/storage/database"
	sqlxrepos "github.com/trezcool/kipimo/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger *logsvc.RollbarLogger `name:"dbLogger"`
}

type loggerOut struct {
	dig.Out
	Logger  core.Logger
	Rollbar *logsvc.RollbarLogger
}

func newLogger(conf *core.Config, zl *zap.Logger) loggerOut {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return loggerOut{Logger: logger, Rollbar: logger}
}

func newDBLogger(conf *core.Config, zl *zap.Logger) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(zl.Named("db").WithOptions(zap.AddCaller()), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout*6)
		defer cancel()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newScheduler(
	conf *core.Config,
	logger core.Logger,
	metrics *metricsvc.Metrics,
	orgSvc org.Service,
	usrSvc user.Service,
	okrSvc okr.Service,
	checkinSvc checkin.Service,
	notifSvc notification.Service,
) (*jobsvc.Scheduler, error) {
	return jobsvc.New(conf.Scheduler, logger, metrics, orgSvc, usrSvc, okrSvc, checkinSvc, notifSvc)
}

type serverParams struct {
	dig.In
	Conf            *core.Config
	Logger          core.Logger
	Metrics         *metricsvc.Metrics
	UserSvc         user.Service
	OrgSvc          org.Service
	OKRSvc          okr.Service
	CheckInSvc      checkin.Service
	NotificationSvc notification.Service
	InvitationSvc   invitation.Service
	ReportSvc       report.Service
	Scheduler       *jobsvc.Scheduler
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Metrics:         p.Metrics,
		UserSvc:         p.UserSvc,
		OrgSvc:          p.OrgSvc,
		OKRSvc:          p.OKRSvc,
		CheckInSvc:      p.CheckInSvc,
		NotificationSvc: p.NotificationSvc,
		InvitationSvc:   p.InvitationSvc,
		ReportSvc:       p.ReportSvc,
		Jobs:            p.Scheduler,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(func() *core.Config { return core.Conf }))
	must(c.Provide(logsvc.NewZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor))
	must(c.Provide(newEmailService))
	must(c.Provide(metricsvc.New))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewOrgRepository))
	must(c.Provide(sqlxrepos.NewOKRRepository))
	must(c.Provide(sqlxrepos.NewCheckInRepository))
	must(c.Provide(sqlxrepos.NewNotificationRepository))
	must(c.Provide(sqlxrepos.NewInvitationRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(org.NewService))
	must(c.Provide(notification.NewService))
	must(c.Provide(okr.NewService))
	must(c.Provide(checkin.NewService))
	must(c.Provide(invitation.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(newScheduler))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
