package scheduler

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"newspulse/internal/domain"
	"newspulse/internal/pipeline"
)

const (
	runJobTimeout = 2 * time.Hour
	stampLayout   = "20060102T150405Z"
)

type Runner interface {
	Harvest(ctx context.Context, req pipeline.HarvestRequest) error
	RunAll(ctx context.Context, req pipeline.RunRequest) error
}

type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	runner Runner
	jobs   []Job
	// mu keeps jobs firing on the same tick from running at once.
	mu  sync.Mutex
	now func() time.Time
	log *slog.Logger
}

func New(ctx context.Context, runner Runner, jobs []Job, loc *time.Location, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		ctx:    ctx,
		cron:   cron.New(cron.WithLocation(loc)),
		runner: runner,
		jobs:   jobs,
		now:    time.Now,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Spec, func() { s.RunJob(job) }); err != nil {
			return err
		}

		s.log.InfoContext(s.ctx, "Job is scheduled",
			"job", job.Name,
			"spec", job.Spec,
			"query", job.Query)
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunJob runs one job now. It returns after the previous job finished.
func (s *Scheduler) RunJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, runJobTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err(),
			"job", job.Name)
		return
	default:
	}

	now := s.now().UTC()
	window := Window(now, job.WindowDays)
	stamp := now.Format(stampLayout)

	var (
		err    error
		output string
	)
	if job.Analyze {
		output = filepath.Join(job.OutputDir, job.Name, stamp)
		err = s.runner.RunAll(ctx, pipeline.RunRequest{
			Query:   job.Query,
			Window:  window,
			Dir:     output,
			OnlyNew: job.OnlyNew,
		})
	} else {
		output = filepath.Join(job.OutputDir, job.Name+"-"+stamp+".csv")
		err = s.runner.Harvest(ctx, pipeline.HarvestRequest{
			Query:   job.Query,
			Window:  window,
			Output:  output,
			OnlyNew: job.OnlyNew,
		})
	}

	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run job",
			"error", err,
			"job", job.Name,
			"query", job.Query,
			"output", output)
		return
	}

	s.log.InfoContext(ctx, "Job is done",
		"job", job.Name,
		"output", output,
		"windowStart", window.Start,
		"windowEnd", window.End)
}

// Window covers the last days calendar days up to now, today included.
func Window(now time.Time, days int) domain.DateRange {
	if days <= 0 {
		days = DefaultWindowDays
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	return domain.DateRange{
		Start: today.AddDate(0, 0, -(days - 1)),
		End:   today.AddDate(0, 0, 1).Add(-time.Nanosecond),
	}
}
