package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"transcript-stack/shared/monitoring"

	"github.com/robfig/cron/v3"
)

// Metrics is what an agent reports after a successful run
type Metrics interface {
	// GetSummary returns a human-readable summary of the run
	GetSummary() string
}

// AgentEvents are the callbacks an agent uses to report a run
type AgentEvents struct {
	OnSuccess         func(metrics Metrics, duration time.Duration)
	OnPartialFailure  func(err error, duration time.Duration)
	OnCriticalFailure func(err error, duration time.Duration)
}

// Agent is a unit of scheduled work
type Agent interface {
	Name() string
	RunOnce(ctx context.Context, events *AgentEvents) error
	Initialize() error
}

// Options configure a Scheduler. Schedule is a six-field cron expression (with
// seconds) or a descriptor such as "@daily".
type Options struct {
	Schedule   string
	HealthPort int
	// RunOnStart runs the agent once as soon as the scheduler starts
	RunOnStart bool
	// RunTimeout bounds a single run; zero means no limit
	RunTimeout time.Duration
}

// Scheduler runs an agent on a cron schedule and reports each run to a Monitor.
// Runs never overlap.
type Scheduler struct {
	opts    Options
	monitor *monitoring.Monitor
	agent   Agent
	cron    *cron.Cron
}

func New(opts Options, agent Agent) *Scheduler {
	return &Scheduler{
		opts:    opts,
		monitor: monitoring.NewMonitor(),
		agent:   agent,
		cron:    cron.New(cron.WithSeconds()),
	}
}

func (s *Scheduler) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Start initializes the agent, serves health checks and blocks until ctx is
// cancelled. A run in progress is allowed to finish before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.agent.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	monitoring.NewHealthServer(s.monitor, strconv.Itoa(s.opts.HealthPort)).Start(ctx)

	job := cron.FuncJob(func() {
		if err := s.RunOnce(ctx); err != nil {
			log.Printf("Error running scheduled job for %s: %v", s.agent.Name(), err)
		}
	})
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job)

	id, err := s.cron.AddJob(s.opts.Schedule, wrapped)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started for %s with schedule %q, next run at %s",
		s.agent.Name(), s.opts.Schedule, s.cron.Entry(id).Next.Format(time.RFC1123))

	var startup sync.WaitGroup
	if s.opts.RunOnStart {
		startup.Add(1)
		go func() {
			defer startup.Done()
			wrapped.Run()
		}()
	}

	<-ctx.Done()
	log.Printf("Scheduler stopping for %s", s.agent.Name())
	<-s.cron.Stop().Done()
	startup.Wait()
	return ctx.Err()
}

// RunOnce runs the agent a single time, outside the schedule
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	startTime := time.Now()
	name := s.agent.Name()
	log.Printf("Starting %s run...", name)

	events := &AgentEvents{
		OnSuccess: func(metrics Metrics, duration time.Duration) {
			s.monitor.RecordSuccess(metrics.GetSummary(), duration)
		},
		OnPartialFailure: func(err error, duration time.Duration) {
			s.monitor.RecordPartialFailure(fmt.Errorf("%s partial failure: %w", name, err), duration)
		},
		OnCriticalFailure: func(err error, duration time.Duration) {
			s.monitor.RecordCriticalFailure(fmt.Errorf("%s critical failure: %w", name, err), duration)
		},
	}

	if err := s.agent.RunOnce(ctx, events); err != nil {
		s.monitor.RecordCriticalFailure(fmt.Errorf("%s failed: %w", name, err), time.Since(startTime))
		return fmt.Errorf("%s run failed: %w", name, err)
	}
	return nil
}
