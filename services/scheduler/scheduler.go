// Package jobsvc runs the periodic per organization jobs: check-in reminders & objective scoring.
//
// A cron entry ticks every conf.Spec. On each tick every organization is visited and each job enabled in
// its settings runs when its interval elapsed since the last run recorded in the settings.
package jobsvc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
	metricsvc "github.com/trezcool/kipimo/services/metrics"
)

var (
	ErrUnknownJob = core.NewNotFoundError("job")

	// NowFunc is the clock of the scheduler; tests may replace it.
	NowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	// runFunc runs a job for one organization. It reports false when the job had nothing to do at now
	// and must not be marked as run.
	runFunc func(ctx context.Context, o org.Organization, now time.Time, force bool) (bool, error)

	job struct {
		interval time.Duration
		run      runFunc
	}

	Scheduler struct {
		spec       string
		cron       *cron.Cron
		logger     core.Logger
		metrics    *metricsvc.Metrics
		orgSvc     org.Service
		usrSvc     user.Service
		okrSvc     okr.Service
		checkinSvc checkin.Service
		notifSvc   notification.Service
		jobs       map[string]job
		mu         sync.Mutex // serializes ticks & manual runs
	}
)

func New(
	conf core.SchedulerConfig,
	logger core.Logger,
	metrics *metricsvc.Metrics,
	orgSvc org.Service,
	usrSvc user.Service,
	okrSvc okr.Service,
	checkinSvc checkin.Service,
	notifSvc notification.Service,
) (*Scheduler, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.Spec, "conf.Spec"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(metrics, "metrics"),
		vala.IsNotNil(orgSvc, "orgSvc"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(okrSvc, "okrSvc"),
		vala.IsNotNil(checkinSvc, "checkinSvc"),
		vala.IsNotNil(notifSvc, "notifSvc"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "validating scheduler arguments")
	}

	s := &Scheduler{
		spec:       conf.Spec,
		logger:     logger,
		metrics:    metrics,
		orgSvc:     orgSvc,
		usrSvc:     usrSvc,
		okrSvc:     okrSvc,
		checkinSvc: checkinSvc,
		notifSvc:   notifSvc,
	}
	s.jobs = map[string]job{
		org.JobReminders: {interval: conf.ReminderInterval, run: s.sendReminders},
		org.JobScoring:   {interval: conf.ScoringInterval, run: s.scoreObjectives},
	}

	cl := cronLogger{logger}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err = s.cron.AddFunc(s.spec, func() { s.Tick(context.Background()) }); err != nil {
		return nil, errors.Wrapf(err, "scheduling %q", s.spec)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler: starting", map[string]interface{}{"spec": s.spec})
	s.cron.Start()
}

// Stop stops the cron & waits for a running tick to complete, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler: stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for running jobs")
	}
}

// Jobs returns the names of the known jobs, sorted.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tick runs every due job of every organization.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orgs, err := s.orgSvc.QueryAll(ctx)
	if err != nil {
		s.logger.Error("scheduler: listing organizations", err)
		return
	}

	now := NowFunc()
	for _, o := range orgs {
		for _, name := range s.Jobs() {
			j := s.jobs[name]
			if !o.Settings.JobEnabled(name) || !o.Settings.Due(name, j.interval, now) {
				continue
			}
			// failures are logged; the other organizations & jobs still run
			_ = s.runJob(ctx, name, j, o, now, false)
		}
	}
}

// RunNow runs job for the given organizations, or all of them when none is given,
// regardless of their settings & last runs.
func (s *Scheduler) RunNow(ctx context.Context, name string, orgIDs ...string) error {
	j, ok := s.jobs[name]
	if !ok {
		return ErrUnknownJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var orgs []org.Organization
	if len(orgIDs) == 0 {
		var err error
		if orgs, err = s.orgSvc.QueryAll(ctx); err != nil {
			return errors.Wrap(err, "listing organizations")
		}
	} else {
		for _, id := range orgIDs {
			o, err := s.orgSvc.GetByID(ctx, id)
			if err != nil {
				return errors.Wrap(err, "finding organization")
			}
			orgs = append(orgs, o)
		}
	}

	now := NowFunc()
	var failed []string
	for _, o := range orgs {
		if err := s.runJob(ctx, name, j, o, now, true); err != nil {
			failed = append(failed, o.Slug)
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("%s failed for: %s", name, strings.Join(failed, ", "))
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, name string, j job, o org.Organization, now time.Time, force bool) error {
	start := time.Now()
	ran, err := j.run(ctx, o, now, force)
	if err == nil && ran {
		err = errors.Wrap(s.orgSvc.MarkJobRun(ctx, o.ID, name, now), "marking job run")
	}
	if ran || err != nil {
		s.metrics.ObserveJob(name, time.Since(start), err)
	}
	if err != nil {
		s.logger.Error(fmt.Sprintf("scheduler: %s failed", name), err, map[string]interface{}{"org_id": o.ID})
		return err
	}
	if ran {
		s.logger.Debug(fmt.Sprintf("scheduler: %s done", name), map[string]interface{}{"org_id": o.ID})
	}
	return nil
}

func activeObjectives(ctx context.Context, okrSvc okr.Service, orgID string) ([]okr.Objective, error) {
	return okrSvc.Query(ctx, orgID, okr.QueryFilter{Statuses: []string{okr.StatusActive}}, nil)
}

// sendReminders notifies, on the reminder weekday of the organization, the owners of key results
// of active objectives with no check-in during the current week.
func (s *Scheduler) sendReminders(ctx context.Context, o org.Organization, now time.Time, force bool) (bool, error) {
	loc := o.Settings.Location()
	if !force && now.In(loc).Weekday() != o.Settings.ReminderWeekday {
		return false, nil
	}

	week := checkin.ISOWeek(now, loc)
	checked, err := s.checkinSvc.CheckedIn(ctx, o.ID, week)
	if err != nil {
		return false, errors.Wrap(err, "listing check-ins")
	}
	objs, err := activeObjectives(ctx, s.okrSvc, o.ID)
	if err != nil {
		return false, errors.Wrap(err, "listing objectives")
	}

	pending := make(map[string][]string) // owner ID: key result titles
	for _, obj := range objs {
		for _, kr := range obj.KeyResults {
			if !checked[kr.ID] {
				pending[kr.OwnerID] = append(pending[kr.OwnerID], kr.Title)
			}
		}
	}

	for ownerID, titles := range pending {
		owner, err := s.usrSvc.GetOrgUser(ctx, o.ID, ownerID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return false, errors.Wrap(err, "finding key result owner")
		}
		if !owner.IsActive {
			continue
		}
		_, err = s.notifSvc.Notify(ctx, owner, notification.NewNotification{
			Kind:  notification.KindCheckInReminder,
			Title: "Weekly check-in reminder",
			Body:  fmt.Sprintf("%d key result(s) are waiting for a check-in this week (%s): %s", len(titles), week, strings.Join(titles, ", ")),
			Link:  "/checkins",
			Email: true,
		})
		if err != nil {
			return false, errors.Wrap(err, "notifying key result owner")
		}
	}
	return true, nil
}

// scoreObjectives refreshes the progress of active objectives & scores the ones whose period ended.
func (s *Scheduler) scoreObjectives(ctx context.Context, o org.Organization, now time.Time, _ bool) (bool, error) {
	objs, err := activeObjectives(ctx, s.okrSvc, o.ID)
	if err != nil {
		return false, errors.Wrap(err, "listing objectives")
	}
	for _, obj := range objs {
		if _, err = s.okrSvc.Recompute(ctx, obj, now); err != nil {
			return false, errors.Wrapf(err, "recomputing objective %s", obj.ID)
		}
	}
	return true, nil
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvMap(keysAndValues))
}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		m[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return m
}
