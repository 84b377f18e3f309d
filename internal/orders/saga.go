package orders

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Order creation spans the local store and two remote services with no
// shared transaction. Each step is recorded in a persisted step log before
// and after it runs; when a step fails, the compensations of every
// completed step run in reverse order.

type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error // nil when nothing to undo
}

type saga struct {
	orderID string
	repo    Repository
	logger  *logrus.Logger
	steps   []sagaStep
}

func (s *saga) execute(ctx context.Context) error {
	var completed []sagaStep

	for _, step := range s.steps {
		s.record(ctx, step.name, "started")

		if err := step.run(ctx); err != nil {
			s.record(ctx, step.name, "failed")
			s.logger.WithError(err).WithFields(logrus.Fields{
				"order_id": s.orderID,
				"step":     step.name,
			}).Error("Order creation step failed, compensating")

			s.compensateAll(ctx, completed)
			return fmt.Errorf("step %s: %w", step.name, err)
		}

		s.record(ctx, step.name, "done")
		completed = append(completed, step)
	}
	return nil
}

func (s *saga) compensateAll(ctx context.Context, completed []sagaStep) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(ctx); err != nil {
			// A failed compensation leaves partial state behind; the step
			// log is the operator's trail for manual cleanup.
			s.logger.WithError(err).WithFields(logrus.Fields{
				"order_id": s.orderID,
				"step":     step.name,
			}).Error("Compensation failed")
			continue
		}
		s.record(ctx, step.name, "compensated")
	}
}

func (s *saga) record(ctx context.Context, step, state string) {
	if err := s.repo.RecordSagaStep(ctx, s.orderID, step, state); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": s.orderID,
			"step":     step,
			"state":    state,
		}).Warn("Failed to record saga step")
	}
}
