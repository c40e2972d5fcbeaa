package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/infrastructure-risk/internal/monitor"
)

// Refresher recomputes and stores assessments for one request.
type Refresher interface {
	Refresh(ctx context.Context, req monitor.Request) error
}

// DefaultInterval is used when no positive refresh interval is configured.
const DefaultInterval = 15 * time.Minute

// Scheduler periodically refreshes risk assessments for watched cities.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	requests  []monitor.Request
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(requests []monitor.Request, interval time.Duration, service Refresher) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		requests:  requests,
		interval:  interval,
		timeout:   10 * time.Minute,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.requests) == 0 {
		log.Println("scheduler: no watch cities configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every watched city one after another.
func (s *Scheduler) RunOnce() {
	log.Println("scheduler: running risk refresh job")

	for _, req := range s.requests {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.service.Refresh(ctx, req); err != nil {
			log.Printf("scheduler: refresh failed for %s: %v", req.City, err)
		}
		cancel()
	}

	log.Println("scheduler: completed risk refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
