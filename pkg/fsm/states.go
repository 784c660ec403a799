package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/superfly/fsm"

	"github.com/webbboot/companion/pkg/job"
	"github.com/webbboot/companion/pkg/platform"
	"github.com/webbboot/companion/pkg/progress"
	"github.com/webbboot/companion/pkg/storage"
)

type handlerRequest = fsm.Request[JobRequest, JobResponse]

// begin looks up the live run for a transition. Destructive stages must
// never run twice, so a retried transition is aborted instead.
func (m *Machine) begin(ctx context.Context, req *handlerRequest, state string) (*jobRun, *JobResponse, error) {
	slog.Info("fsm_state_"+state, "job_id", req.Msg.JobID, "device", req.Msg.Device)

	run, err := m.lookup(req.Msg.JobID)
	if err != nil {
		slog.Error("fsm_run_missing", "job_id", req.Msg.JobID, "state", state)
		return nil, nil, fsm.Abort(err)
	}
	if retryCount := fsm.RetryFromContext(ctx); retryCount > 0 {
		err := fmt.Errorf("state %s retried (%d); jobs are never retried", state, retryCount)
		slog.Error("fsm_retry_refused", "job_id", req.Msg.JobID, "state", state, "retry", retryCount)
		return nil, nil, m.fail(req, run, progress.OpValidation, err)
	}

	resp := req.W.Msg
	if resp == nil {
		resp = &JobResponse{}
	}
	return run, resp, nil
}

// fail emits the terminal failure event and aborts the machine.
func (m *Machine) fail(req *handlerRequest, run *jobRun, op string, err error) error {
	status := job.Status(err)
	slog.Error("job_failed", "job_id", req.Msg.JobID, "operation", op, "status", status, "error", err)
	run.setErr(err)
	run.reporter.Fail(status, op)
	return fsm.Abort(err)
}

// stage emits a progress event and mirrors it into the job history.
func (m *Machine) stage(req *handlerRequest, run *jobRun, pct int, status, op string) {
	if err := run.reporter.Progress(pct, status, op); err != nil {
		slog.Debug("progress_not_sent", "job_id", req.Msg.JobID, "progress", pct, "error", err)
	}
	if m.repo != nil {
		if err := m.repo.UpdateProgress(req.Msg.JobID, pct, op); err != nil {
			slog.Warn("history_progress_failed", "job_id", req.Msg.JobID, "error", err)
		}
	}
}

// handleValidate checks the job before any I/O
func (m *Machine) handleValidate(ctx context.Context, req *handlerRequest) (*fsm.Response[JobResponse], error) {
	run, resp, err := m.begin(ctx, req, StateValidate)
	if err != nil {
		return nil, err
	}

	if err := job.Validate(req.Msg.Job()); err != nil {
		return nil, m.fail(req, run, progress.OpValidation, err)
	}

	return fsm.NewResponse(resp), nil
}

// handleVerify confirms the device exists and is not mounted
func (m *Machine) handleVerify(ctx context.Context, req *handlerRequest) (*fsm.Response[JobResponse], error) {
	run, resp, err := m.begin(ctx, req, StateVerify)
	if err != nil {
		return nil, err
	}

	m.stage(req, run, progress.Verifying, statusVerifying, progress.OpDeviceVerification)

	info, err := m.verifier.CheckUnmounted(ctx, req.Msg.Device)
	if err != nil {
		return nil, m.fail(req, run, progress.OpDeviceVerification, err)
	}
	resp.DeviceSize = info.SizeBytes

	return fsm.NewResponse(resp), nil
}

// handleFetchImage downloads s3:// images into the local cache. Local
// images pass through untouched.
func (m *Machine) handleFetchImage(ctx context.Context, req *handlerRequest) (*fsm.Response[JobResponse], error) {
	run, resp, err := m.begin(ctx, req, StateFetchImage)
	if err != nil {
		return nil, err
	}

	if job.Action(req.Msg.Action) != job.ActionCreate || !storage.IsS3URI(req.Msg.Image) {
		resp.ImagePath = req.Msg.Image
		return fsm.NewResponse(resp), nil
	}

	m.stage(req, run, progress.Fetching, statusFetching, progress.OpImageDownload)

	if m.fetcher == nil {
		err := job.NewError(job.KindDevice, "fetch", "Error: Remote images are not configured", job.ErrFetchFailed)
		return nil, m.fail(req, run, progress.OpImageDownload, err)
	}

	result, err := m.fetcher.Fetch(context.WithoutCancel(ctx), req.Msg.Image)
	if err != nil {
		err := job.NewError(job.KindDevice, "fetch", "Error: Image download failed",
			fmt.Errorf("%w: %w", job.ErrFetchFailed, err))
		return nil, m.fail(req, run, progress.OpImageDownload, err)
	}

	resp.ImagePath = result.LocalPath
	resp.ImageSHA256 = result.SHA256
	resp.ImageSize = result.Size

	if m.repo != nil {
		if err := m.repo.UpdateImageSHA256(req.Msg.JobID, result.SHA256); err != nil {
			slog.Warn("history_checksum_failed", "job_id", req.Msg.JobID, "error", err)
		}
	}

	return fsm.NewResponse(resp), nil
}

// handleFormat creates the requested filesystem on the device
func (m *Machine) handleFormat(ctx context.Context, req *handlerRequest) (*fsm.Response[JobResponse], error) {
	run, resp, err := m.begin(ctx, req, StateFormat)
	if err != nil {
		return nil, err
	}

	m.stage(req, run, progress.Formatting, statusFormatting, progress.OpFormatting)

	// Format and write are never cancelled once started.
	detached := context.WithoutCancel(ctx)

	if m.opts.RecheckBeforeFormat {
		if _, err := m.verifier.CheckUnmounted(detached, req.Msg.Device); err != nil {
			return nil, m.fail(req, run, progress.OpFormatting, err)
		}
	}

	scheme := req.Msg.Scheme
	if scheme == "" {
		scheme = platform.DefaultScheme
	}

	filesystem := req.Msg.Job().FilesystemLabel()
	result, err := m.adapter.Format(detached, req.Msg.Device, filesystem, scheme)
	if err != nil {
		err := job.NewError(job.KindFormat, "format", "Format failed: Unable to execute format command",
			fmt.Errorf("%w: %w", job.ErrFormatFailed, err))
		return nil, m.fail(req, run, progress.OpFormatting, err)
	}
	if !result.Success {
		err := job.NewError(job.KindFormat, "format", "Format failed: "+result.Diagnostic,
			fmt.Errorf("%w: %s", job.ErrFormatFailed, result.Diagnostic))
		return nil, m.fail(req, run, progress.OpFormatting, err)
	}

	slog.Info("device_formatted", "job_id", req.Msg.JobID, "device", req.Msg.Device, "filesystem", filesystem)
	return fsm.NewResponse(resp), nil
}

type writeOutcome struct {
	result *platform.Result
	err    error
}

// handleWriteImage copies the image onto the device, reporting estimated
// progress while the native tool runs
func (m *Machine) handleWriteImage(ctx context.Context, req *handlerRequest) (*fsm.Response[JobResponse], error) {
	run, resp, err := m.begin(ctx, req, StateWriteImage)
	if err != nil {
		return nil, err
	}
	if job.Action(req.Msg.Action) != job.ActionCreate {
		return fsm.NewResponse(resp), nil
	}

	m.stage(req, run, progress.Writing, statusWriting, progress.OpImageWriting)

	imagePath := resp.ImagePath
	if imagePath == "" {
		imagePath = req.Msg.Image
	}
	if err := checkImage(imagePath); err != nil {
		return nil, m.fail(req, run, progress.OpImageWriting, err)
	}

	done := make(chan writeOutcome, 1)
	go func() {
		result, err := m.adapter.WriteImage(context.WithoutCancel(ctx), imagePath, req.Msg.Device)
		done <- writeOutcome{result: result, err: err}
	}()

	// Ticks are an estimate only; the outcome comes from done.
	ticker := time.NewTicker(m.opts.WriteTick)
	defer ticker.Stop()

	pct := progress.Writing
	for {
		select {
		case <-ticker.C:
			if pct+progress.WriteTickAmount > progress.WriteCeiling {
				continue
			}
			pct += progress.WriteTickAmount
			m.stage(req, run, pct, fmt.Sprintf(statusWriteTick, pct), progress.OpImageWriting)

		case out := <-done:
			if out.err != nil {
				err := job.NewError(job.KindWrite, "write", "Error: Failed to start ISO write process",
					fmt.Errorf("%w: %w", job.ErrWriteFailed, out.err))
				return nil, m.fail(req, run, progress.OpImageWriting, err)
			}
			if !out.result.Success {
				err := job.NewError(job.KindWrite, "write", "ISO write failed: "+out.result.Diagnostic,
					fmt.Errorf("%w: %s", job.ErrWriteFailed, out.result.Diagnostic))
				return nil, m.fail(req, run, progress.OpImageWriting, err)
			}
			slog.Info("image_written", "job_id", req.Msg.JobID, "image", imagePath, "device", req.Msg.Device)
			return fsm.NewResponse(resp), nil
		}
	}
}

// checkImage re-checks the image right before the write, since it may have
// moved since the job was validated.
func checkImage(path string) error {
	if _, err := os.Stat(path); err != nil {
		return job.NewError(job.KindWrite, "write", "Error: ISO file not found",
			fmt.Errorf("%w: %w", job.ErrImageNotFound, err))
	}
	f, err := os.Open(path)
	if err != nil {
		return job.NewError(job.KindWrite, "write", "Error: Cannot read ISO file",
			fmt.Errorf("%w: %w", job.ErrImageUnreadable, err))
	}
	return f.Close()
}

// handleVerifyWrite lets the device settle after the write. No content
// comparison is made.
func (m *Machine) handleVerifyWrite(ctx context.Context, req *handlerRequest) (*fsm.Response[JobResponse], error) {
	run, resp, err := m.begin(ctx, req, StateVerifyWrite)
	if err != nil {
		return nil, err
	}
	if job.Action(req.Msg.Action) != job.ActionCreate {
		return fsm.NewResponse(resp), nil
	}

	m.stage(req, run, progress.VerifyingWrite, statusVerifyingWrite, progress.OpVerification)
	time.Sleep(m.opts.SettleDelay)

	return fsm.NewResponse(resp), nil
}

// handleComplete reports success
func (m *Machine) handleComplete(ctx context.Context, req *handlerRequest) (*fsm.Response[JobResponse], error) {
	run, resp, err := m.begin(ctx, req, StateComplete)
	if err != nil {
		return nil, err
	}

	run.reporter.Complete(statusComplete)
	if m.repo != nil {
		if err := m.repo.UpdateProgress(req.Msg.JobID, progress.Complete, progress.OpComplete); err != nil {
			slog.Warn("history_progress_failed", "job_id", req.Msg.JobID, "error", err)
		}
	}

	slog.Info("fsm_complete", "job_id", req.Msg.JobID, "action", req.Msg.Action, "device", req.Msg.Device)
	return fsm.NewResponse(resp), nil
}
