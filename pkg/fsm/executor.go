package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/superfly/fsm"

	"github.com/webbboot/companion/pkg/db"
	"github.com/webbboot/companion/pkg/errors"
	"github.com/webbboot/companion/pkg/job"
	"github.com/webbboot/companion/pkg/progress"
)

// Executor runs jobs one at a time through the registered machine.
type Executor struct {
	machine *Machine
	manager *fsm.Manager
	start   fsm.Start[JobRequest, JobResponse]
}

// NewExecutor registers machine with manager.
func NewExecutor(ctx context.Context, manager *fsm.Manager, machine *Machine) (*Executor, error) {
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return nil, err
	}
	return &Executor{machine: machine, manager: manager, start: start}, nil
}

// Result is the outcome of one job.
type Result struct {
	JobID string
	Final progress.Event
	Err   error // the failure, nil on success
}

// Run executes j to completion, streaming progress to sink. It blocks until
// the job is terminal and ignores cancellation of ctx once started: a
// device must never be left half-formatted because the controller went
// away. Exactly one terminal event is delivered to sink.
func (e *Executor) Run(ctx context.Context, j job.Job, sink progress.Sink) *Result {
	ctx = context.WithoutCancel(ctx)
	jobID := uuid.NewString()
	reporter := progress.NewReporter(jobID, sink)
	run := e.machine.track(jobID, reporter)
	defer e.machine.untrack(jobID)

	slog.Info("job_started", "job_id", jobID, "job", j.String())
	e.record(&db.JobRecord{
		ID:         jobID,
		Action:     string(j.Action),
		Device:     j.Device,
		Image:      j.Image,
		Filesystem: j.Filesystem,
		Scheme:     j.PartitionScheme,
		Status:     db.StatusRunning,
	})

	req := &JobRequest{
		JobID:      jobID,
		Action:     string(j.Action),
		Image:      j.Image,
		Filesystem: j.Filesystem,
		Scheme:     j.PartitionScheme,
		Device:     j.Device,
	}

	version, err := e.start(ctx, jobID, fsm.NewRequest(req, &JobResponse{}))
	if err != nil {
		run.setErr(errors.Wrap(err, "FSM start failed"))
	} else if err := e.manager.Wait(ctx, version); err != nil {
		slog.Info("fsm_wait_returned", "job_id", jobID, "error", err)
		run.setErr(err)
	}

	final, ok := reporter.Terminal()
	if !ok {
		// The machine stopped without reporting, e.g. on shutdown.
		failure := run.failure()
		if failure == nil {
			failure = fmt.Errorf("job %s ended without a result", jobID)
			run.setErr(failure)
		}
		reporter.Fail(job.Status(failure), progress.OpValidation)
		final, _ = reporter.Terminal()
	}

	result := &Result{JobID: jobID, Final: final}
	if final.Progress != progress.Complete {
		result.Err = run.failure()
	}
	e.finish(result)

	if err := reporter.DeliveryErr(); err != nil {
		slog.Warn("job_progress_undelivered", "job_id", jobID, "last_delivered_stage", reporter.Last(), "error", err)
	}
	slog.Info("job_finished", "job_id", jobID, "progress", final.Progress, "status", final.Status)
	return result
}

func (e *Executor) record(rec *db.JobRecord) {
	if e.machine.repo == nil {
		return
	}
	if err := e.machine.repo.Create(rec); err != nil {
		slog.Warn("history_create_failed", "job_id", rec.ID, "error", err)
	}
}

func (e *Executor) finish(result *Result) {
	if e.machine.repo == nil {
		return
	}
	status, message := db.StatusComplete, ""
	if result.Err != nil {
		status, message = db.StatusFailed, result.Final.Status
	}
	if err := e.machine.repo.UpdateStatus(result.JobID, status, message); err != nil {
		slog.Warn("history_finish_failed", "job_id", result.JobID, "error", err)
	}
}
