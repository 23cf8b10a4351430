// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"time"

	"github.com/Kariqs/amexan-marketplace/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	PurgeTokensSchedule   = "@hourly"
	CancelStaleSchedule   = "@every 15m"
	CleanLimiterSchedule  = "@every 10m"
	stalePaymentThreshold = 24 * time.Hour
)

// Cleaner is anything that forgets idle per-client state.
type Cleaner interface {
	Cleanup(now time.Time) int
}

type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []any) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			out[key] = kv[i+1]
		}
	}
	return out
}

type Scheduler struct {
	cron *cron.Cron
	db   *gorm.DB
	log  logrus.FieldLogger
	now  func() time.Time
}

// New registers every maintenance job. limiter may be nil.
func New(db *gorm.DB, log logrus.FieldLogger, limiter Cleaner) (*Scheduler, error) {
	logger := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		db:   db,
		log:  log,
		now:  time.Now,
	}

	if _, err := s.cron.AddFunc(PurgeTokensSchedule, s.PurgeExpiredTokens); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(CancelStaleSchedule, s.CancelStaleOrders); err != nil {
		return nil, err
	}
	if limiter != nil {
		if _, err := s.cron.AddFunc(CleanLimiterSchedule, func() {
			if n := limiter.Cleanup(s.now()); n > 0 {
				s.log.WithField("removed", n).Debug("Rate limiter cleaned")
			}
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) PurgeExpiredTokens() {
	n, err := services.PurgeExpiredRefreshTokens(s.db, s.now())
	if err != nil {
		s.log.WithError(err).Error("Failed to purge expired refresh tokens")
		return
	}
	s.log.WithField("deleted", n).Info("Expired refresh tokens purged")
}

func (s *Scheduler) CancelStaleOrders() {
	n, err := services.CancelStalePendingOrders(s.db, s.now().Add(-stalePaymentThreshold))
	if err != nil {
		s.log.WithError(err).Error("Failed to cancel stale orders")
		return
	}
	if n > 0 {
		s.log.WithField("cancelled", n).Info("Unpaid orders cancelled")
	}
}
