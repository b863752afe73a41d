// Package scheduler fires inventory jobs on their intervals and owns the retry
// policy: configuration failures park a job until an operator fixes it, transient
// failures are retried a bounded number of times.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yarkm13/ftpsync/internal/inventory"
	"github.com/yarkm13/ftpsync/internal/job"
)

// Runner executes one job pass.
type Runner interface {
	Execute(ctx context.Context, jobName string, data map[string]string) error
}

type Options struct {
	Workers    int
	Jitter     time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Log        logrus.FieldLogger
}

type Scheduler struct {
	runner Runner
	opts   Options
	log    logrus.FieldLogger

	queue chan task
	wg    sync.WaitGroup

	mu    sync.Mutex
	state map[string]*jobState

	// stats (atomic) for observability
	enqueued  uint64
	dropped   uint64
	succeeded uint64
	failed    uint64
}

type task struct {
	job     inventory.Job
	attempt int
}

type jobState struct {
	busy     bool // queued, running or waiting for a retry
	disabled bool
}

func New(runner Runner, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		runner: runner,
		opts:   opts,
		log:    log,
		queue:  make(chan task, opts.Workers),
		state:  make(map[string]*jobState),
	}
}

// Run fires jobs until ctx is done and returns once every worker has stopped.
func (s *Scheduler) Run(ctx context.Context, jobs []inventory.Job) {
	s.mu.Lock()
	for _, j := range jobs {
		s.state[j.Name] = &jobState{}
	}
	s.mu.Unlock()

	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i+1)
	}
	for _, j := range jobs {
		s.wg.Add(1)
		go s.fire(ctx, j)
	}

	s.log.WithFields(logrus.Fields{"jobs": len(jobs), "workers": s.opts.Workers}).Info("scheduler started")
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) fire(ctx context.Context, j inventory.Job) {
	defer s.wg.Done()

	// Kick once immediately
	s.enqueue(task{job: j})

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.opts.Jitter > 0 {
				delay := time.Duration(rand.Int63n(int64(s.opts.Jitter)))
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			s.enqueue(task{job: j})
		}
	}
}

// enqueue never blocks. A job that is still busy, or a full queue, drops the firing.
func (s *Scheduler) enqueue(t task) {
	s.mu.Lock()
	st := s.state[t.job.Name]
	if st.disabled {
		s.mu.Unlock()
		return
	}
	if st.busy {
		s.mu.Unlock()
		atomic.AddUint64(&s.dropped, 1)
		s.log.WithField("job", t.job.Name).Debug("previous run still busy, skipping firing")
		return
	}
	st.busy = true
	s.mu.Unlock()

	select {
	case s.queue <- t:
		atomic.AddUint64(&s.enqueued, 1)
	default:
		s.setBusy(t.job.Name, false)
		atomic.AddUint64(&s.dropped, 1)
		s.log.WithField("job", t.job.Name).Warn("job queue full, skipping firing")
	}
}

func (s *Scheduler) setBusy(name string, busy bool) {
	s.mu.Lock()
	s.state[name].busy = busy
	s.mu.Unlock()
}

// Disabled reports whether name was parked after a non-retryable failure.
func (s *Scheduler) Disabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[name]
	return ok && st.disabled
}

func (s *Scheduler) Stats() (enqueued, dropped, succeeded, failed uint64) {
	return atomic.LoadUint64(&s.enqueued), atomic.LoadUint64(&s.dropped),
		atomic.LoadUint64(&s.succeeded), atomic.LoadUint64(&s.failed)
}

// RunOnce executes a single job synchronously, outside of any schedule.
func RunOnce(ctx context.Context, runner Runner, j inventory.Job) error {
	return runner.Execute(ctx, j.Name, j.Params)
}

var _ Runner = (*job.Job)(nil)
