// Package worker runs background refresh jobs on a bounded pool so a burst
// of table reloads cannot exhaust database connections. Each job gets its
// own store handle and delivers results through a callback; cancelling the
// pool is advisory, in-flight statements run to completion.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/gridsync/internal/store"
)

// Job is one unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs jobs with bounded concurrency.
type Pool struct {
	log    zerolog.Logger
	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool returns a pool running at most limit jobs at once.
func NewPool(ctx context.Context, log zerolog.Logger, limit int) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	return &Pool{
		log:    log.With().Str("component", "worker").Logger(),
		g:      g,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules a job, blocking while the pool is at its limit. Jobs
// submitted after a cancel still start but see a cancelled context.
func (p *Pool) Submit(job Job) {
	p.g.Go(func() error {
		start := time.Now()
		p.log.Debug().Str("job", job.Name).Msg("job started")

		err := job.Run(p.ctx)
		if err != nil {
			p.log.Error().Err(err).Str("job", job.Name).Dur("took", time.Since(start)).
				Msg("job failed")
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		p.log.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("job finished")
		return nil
	})
}

// Wait blocks until every submitted job finishes and returns the first
// failure.
func (p *Pool) Wait() error {
	defer p.cancel()
	return p.g.Wait()
}

// Cancel asks running jobs to stop. The cancellation is advisory: a job
// that never checks its context runs to completion.
func (p *Pool) Cancel() {
	p.cancel()
}

// QueryJob builds a job that runs one query on its own store handle and
// delivers the rows on success. The store factory runs inside the job so
// each job holds its connection only while it runs.
func QueryJob(name string, newStore func() *store.Store, sql string, deliver func(rows []map[string]any)) Job {
	return Job{
		Name: name,
		Run: func(ctx context.Context) error {
			s := newStore()
			defer s.Close()

			rows, err := s.Query(ctx, sql)
			if err != nil {
				return err
			}
			deliver(rows)
			return nil
		},
	}
}
