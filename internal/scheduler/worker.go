package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yarkm13/ftpsync/internal/job"
)

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	s.log.Debugf("worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.execute(ctx, id, t)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, id int, t task) {
	log := s.log.WithFields(logrus.Fields{"job": t.job.Name, "worker": id, "attempt": t.attempt + 1})
	start := time.Now()

	err := s.runner.Execute(ctx, t.job.Name, t.job.Params)
	log = log.WithField("duration", time.Since(start).String())

	switch {
	case err == nil:
		atomic.AddUint64(&s.succeeded, 1)
		s.setBusy(t.job.Name, false)
		log.Debug("run succeeded")

	case !job.IsRetryable(err):
		atomic.AddUint64(&s.failed, 1)
		s.mu.Lock()
		st := s.state[t.job.Name]
		st.disabled = true
		st.busy = false
		s.mu.Unlock()
		log.WithError(err).Error("job disabled until its definition is fixed")

	case ctx.Err() != nil:
		s.setBusy(t.job.Name, false)

	case t.attempt < s.opts.MaxRetries:
		atomic.AddUint64(&s.failed, 1)
		log.WithError(err).Warnf("run failed, retrying in %s", s.opts.RetryDelay)
		s.wg.Add(1)
		go s.retry(ctx, task{job: t.job, attempt: t.attempt + 1})

	default:
		atomic.AddUint64(&s.failed, 1)
		s.setBusy(t.job.Name, false)
		log.WithError(err).Error("run failed, retries exhausted, waiting for next firing")
	}
}

// retry keeps the job busy while it waits so regular firings don't stack up behind it.
func (s *Scheduler) retry(ctx context.Context, t task) {
	defer s.wg.Done()

	timer := time.NewTimer(s.opts.RetryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.setBusy(t.job.Name, false)
		return
	case <-timer.C:
	}

	select {
	case <-ctx.Done():
		s.setBusy(t.job.Name, false)
	case s.queue <- t:
		atomic.AddUint64(&s.enqueued, 1)
	}
}
