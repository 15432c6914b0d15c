package bot

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher runs units of work detached from the request that triggered
// them. The webhook caller has already been acknowledged by the time a task
// starts, so outcomes are only observable here, in the logs.
type Dispatcher struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Dispatch starts fn in the background. Once dispatched a task runs to a
// terminal state; there is no cancellation.
func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error) {
	logger := d.logger.With(
		zap.String("task", name),
		zap.String("task_id", uuid.NewString()))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task panicked", zap.Any("panic", r))
			}
		}()
		if err := fn(context.Background()); err != nil {
			logger.Error("task failed", zap.Error(err))
			return
		}
		logger.Info("task completed")
	}()
}

// Wait blocks until every dispatched task has reached a terminal state.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
