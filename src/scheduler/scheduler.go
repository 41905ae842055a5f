package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/username/notefolio/backend/src/logger"
)

// IST is the exchange time zone schedules are evaluated in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Job is a unit of background work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler runs jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(IST)),
		log:  logger.L.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers job under a standard five field cron expression or a
// descriptor such as "@every 1m".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug("Running job", "job", job.Name())
		start := time.Now()
		if err := job.Run(); err != nil {
			s.log.Error("Job failed", "job", job.Name(), "error", err)
			return
		}
		s.log.Debug("Job completed", "job", job.Name(), "duration", time.Since(start))
	})
	if err != nil {
		return err
	}
	s.log.Info("Job registered", "schedule", schedule, "job", job.Name())
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info("Running job immediately", "job", job.Name())
	return job.Run()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
