package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"linkfeed/internal/service"
)

// jobTimeout bounds one incremental sync run.
const jobTimeout = 5 * time.Minute

// Scheduler runs the incremental channel sync on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	feed *service.FeedService
	spec string
	log  logrus.FieldLogger
}

// New creates a Scheduler that runs feed.IncrementalSync per the given
// cron spec (standard 5-field format).
func New(spec string, feed *service.FeedService, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		feed: feed,
		spec: spec,
		log:  logger.WithField("component", "scheduler"),
	}
}

// Start registers the sync job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.runOnce)
	if err != nil {
		return fmt.Errorf("failed to schedule incremental sync (%q): %w", s.spec, err)
	}
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("Incremental sync scheduled")
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.feed.IncrementalSync(ctx); err != nil {
		s.log.WithError(err).Error("Scheduled incremental sync failed")
	}
}
