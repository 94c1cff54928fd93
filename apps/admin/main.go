package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
	emailsvc "github.com/trezcool/kipimo/services/email"
	logsvc "github.com/trezcool/kipimo/services/logger"
	metricsvc "github.com/trezcool/kipimo/services/metrics"
	jobsvc "github.com/trezcool/kipimo/services/scheduler"
	"github.com/trezcool/kipimo/storage/database"
	sqlxrepos "github.com/trezcool/kipimo/storage/database/sqlx"
)

func main() {
	conf := core.Conf

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	core.ParseEmailTemplates(logger)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()
	if err = database.StatusCheck(context.Background(), db); err != nil {
		logger.Fatal(fmt.Sprintf("checking database: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	tx := database.NewTransactor(db)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc)
	orgSvc := org.NewService(tx, sqlxrepos.NewOrgRepository(db), usrSvc)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), mailSvc)
	okrSvc := okr.NewService(tx, sqlxrepos.NewOKRRepository(db), orgSvc, usrSvc, notifSvc)
	checkinSvc := checkin.NewService(tx, sqlxrepos.NewCheckInRepository(db), okrSvc, orgSvc, usrSvc, notifSvc, logger)

	scheduler, err := jobsvc.New(conf.Scheduler, logger, metricsvc.New(), orgSvc, usrSvc, okrSvc, checkinSvc, notifSvc)
	if err != nil {
		logger.Fatal(fmt.Sprintf("creating scheduler: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: usrSvc,
		orgSvc: orgSvc,
		jobs:   scheduler,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
