// Package fsm implements the job execution engine. Each job runs through
// the validate, verify, fetch, format, write and verify stages as a
// superfly/fsm state machine; every failure aborts straight to the failed
// state and is reported to the controller exactly once.
package fsm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/superfly/fsm"

	"github.com/webbboot/companion/pkg/db"
	"github.com/webbboot/companion/pkg/device"
	"github.com/webbboot/companion/pkg/errors"
	"github.com/webbboot/companion/pkg/platform"
	"github.com/webbboot/companion/pkg/progress"
	"github.com/webbboot/companion/pkg/storage"
)

// Default stage timings.
const (
	DefaultWriteTick   = 2 * time.Second
	DefaultSettleDelay = 2 * time.Second
)

// ImageFetcher downloads remote images into a local cache.
type ImageFetcher interface {
	Fetch(ctx context.Context, uri string) (*storage.DownloadResult, error)
}

// Options tune the timing and safety checks of a Machine.
type Options struct {
	// WriteTick is the cadence of estimated progress during the write.
	WriteTick time.Duration
	// SettleDelay is how long the verify stage waits after the write.
	SettleDelay time.Duration
	// RecheckBeforeFormat re-reads mount state right before formatting.
	RecheckBeforeFormat bool
}

// Machine holds dependencies for FSM transitions
type Machine struct {
	adapter  platform.Adapter
	verifier *device.Verifier
	fetcher  ImageFetcher   // nil disables s3:// images
	repo     *db.Repository // nil disables history
	opts     Options

	mu   sync.Mutex
	runs map[string]*jobRun
}

// jobRun is the live state of one job that cannot travel through the FSM
// request: the progress reporter bound to the controller and the error
// that ended the job.
type jobRun struct {
	reporter *progress.Reporter

	mu  sync.Mutex
	err error
}

func (r *jobRun) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *jobRun) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// NewMachine creates a new FSM machine with dependencies
func NewMachine(
	adapter platform.Adapter,
	verifier *device.Verifier,
	fetcher ImageFetcher,
	repo *db.Repository,
	opts Options,
) *Machine {
	if opts.WriteTick <= 0 {
		opts.WriteTick = DefaultWriteTick
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &Machine{
		adapter:  adapter,
		verifier: verifier,
		fetcher:  fetcher,
		repo:     repo,
		opts:     opts,
		runs:     make(map[string]*jobRun),
	}
}

// Register registers the job FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[JobRequest, JobResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[JobRequest, JobResponse](manager, "job").
		Start(StateValidate, m.handleValidate).
		To(StateVerify, m.handleVerify).
		To(StateFetchImage, m.handleFetchImage).
		To(StateFormat, m.handleFormat).
		To(StateWriteImage, m.handleWriteImage).
		To(StateVerifyWrite, m.handleVerifyWrite).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

func (m *Machine) track(jobID string, reporter *progress.Reporter) *jobRun {
	run := &jobRun{reporter: reporter}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[jobID] = run
	return run
}

func (m *Machine) untrack(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, jobID)
}

func (m *Machine) lookup(jobID string) (*jobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[jobID]
	if !ok {
		return nil, fmt.Errorf("no active run for job %s", jobID)
	}
	return run, nil
}
