package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/queue"
	"github.com/ashveil/jobscout/internal/store"
	"github.com/ashveil/jobscout/internal/task"
)

// TaskStore records task status transitions and terminal outcomes.
type TaskStore interface {
	MarkStarted(ctx context.Context, id string) error
	Complete(ctx context.Context, id, result string) error
	Fail(ctx context.Context, id, errMsg string) error
}

// Publisher sends progress events to stream subscribers.
type Publisher interface {
	Publish(ctx context.Context, taskID string, ev *task.Event) error
}

// Reporter is the capability handed to a pipeline for emitting progress.
type Reporter interface {
	Report(eventType string, data map[string]any)
}

// Pipeline is the report-generation collaborator. Opaque to the executor
// beyond emitting events through its Reporter and eventually returning a
// report or an error.
type Pipeline interface {
	Run(ctx context.Context) (string, error)
}

// PipelineFactory builds a pipeline for one task's parameters.
type PipelineFactory func(params task.Params, rep Reporter) Pipeline

// Executor runs queued analysis tasks. Outcomes are reported through two
// independent paths: the task store (durable) and the event relay
// (best-effort); a fault in the relay never alters the task outcome.
type Executor struct {
	store       TaskStore
	relay       Publisher
	newPipeline PipelineFactory
	logger      *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(st TaskStore, relay Publisher, factory PipelineFactory, logger *zap.Logger) *Executor {
	return &Executor{
		store:       st,
		relay:       relay,
		newPipeline: factory,
		logger:      logger,
	}
}

// Execute runs one job to its terminal state. The returned error re-raises
// a pipeline failure into the queue substrate after it has already been
// recorded in the store and on the event channel.
func (e *Executor) Execute(ctx context.Context, job *queue.Job) error {
	if err := e.store.MarkStarted(ctx, job.TaskID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Another worker already claimed this task.
			e.logger.Warn("skipping already-claimed task", zap.String("task", job.TaskID))
			return nil
		}
		return fmt.Errorf("claim task %s: %w", job.TaskID, err)
	}

	e.report(ctx, job.TaskID, task.EventCrewStarted, map[string]any{
		"country":  job.Params.Country,
		"city":     job.Params.City,
		"job_role": job.Params.JobRole,
	})

	rep := &taskReporter{exec: e, ctx: ctx, taskID: job.TaskID}
	result, err := e.newPipeline(job.Params, rep).Run(ctx)
	if err != nil {
		if storeErr := e.store.Fail(ctx, job.TaskID, err.Error()); storeErr != nil {
			e.logger.Error("failed to record task failure",
				zap.String("task", job.TaskID),
				zap.Error(storeErr))
		}
		e.report(ctx, job.TaskID, task.EventCrewError, map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("pipeline: %w", err)
	}

	if err := e.store.Complete(ctx, job.TaskID, result); err != nil {
		return fmt.Errorf("record result %s: %w", job.TaskID, err)
	}
	e.report(ctx, job.TaskID, task.EventCrewCompleted, map[string]any{
		"status": "success",
		"result": result,
	})

	e.logger.Info("task completed", zap.String("task", job.TaskID))
	return nil
}

// report publishes a progress event, swallowing relay failures so they can
// never mask the task's own outcome.
func (e *Executor) report(ctx context.Context, taskID, eventType string, data map[string]any) {
	ev := &task.Event{Type: eventType, Data: data}
	if err := e.relay.Publish(ctx, taskID, ev); err != nil {
		e.logger.Warn("event emission failed",
			zap.String("task", taskID),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

// taskReporter adapts the executor's report path into the Reporter
// capability handed to pipelines.
type taskReporter struct {
	exec   *Executor
	ctx    context.Context
	taskID string
}

func (r *taskReporter) Report(eventType string, data map[string]any) {
	r.exec.report(r.ctx, r.taskID, eventType, data)
}
