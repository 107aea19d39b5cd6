package session

import (
	"context"
	"log/slog"

	"github.com/mcoot/pairlobby/internal/model"
)

// task is one unit of serialized work. Tasks never block on membership
// queries; those run off the executor and resume as a new task.
type task func(ctx context.Context)

// Run executes submitted tasks one at a time until ctx is done.
// All registry mutation happens inside tasks.
func (c *Controller) Run(ctx context.Context) {
	c.logger.Debug("session executor started")
	defer close(c.stopped)

	for {
		select {
		case t := <-c.tasks:
			t(ctx)
		case <-ctx.Done():
			c.logger.Debug("session executor stopped")
			return
		}
	}
}

// submit queues a task, blocking while the queue is full
func (c *Controller) submit(ctx context.Context, t task) error {
	select {
	case <-c.stopped:
		return model.ErrExecutorStopped
	default:
	}

	select {
	case c.tasks <- t:
		return nil
	case <-c.stopped:
		return model.ErrExecutorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain waits until every task submitted before it has run. Membership
// queries still in flight are not waited for.
func (c *Controller) Drain(ctx context.Context) error {
	done := make(chan struct{})
	if err := c.submit(ctx, func(context.Context) { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return model.ErrExecutorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// suspend runs query on its own goroutine and resumes on the executor with
// the result. No state is locked while the query is outstanding, so other
// commands interleave freely. If the acting connection disconnects in the
// meantime the continuation is dropped.
func suspend[T any](
	ctx context.Context,
	c *Controller,
	id model.ConnID,
	query func(ctx context.Context) (T, error),
	resume func(ctx context.Context, result T, err error),
) {
	s := c.session(id)
	s.pending++
	c.inflight.Add(1)

	go func() {
		qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
		result, err := query(qctx)
		cancel()

		submitErr := c.submit(ctx, func(ctx context.Context) {
			defer c.inflight.Add(-1)
			s.pending--
			if s.phase == phaseDisconnected {
				if s.pending == 0 {
					delete(c.sessions, id)
				}
				c.logger.Debug("dropped continuation for disconnected connection",
					slog.String("socket_id", string(id)))
				return
			}
			resume(ctx, result, err)
		})
		if submitErr != nil {
			c.inflight.Add(-1)
		}
	}()
}
