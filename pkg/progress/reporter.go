package progress

import (
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrOutOfOrder is returned for a non-terminal event whose progress does
	// not exceed the last delivered value.
	ErrOutOfOrder = errors.New("progress: event out of order")
	// ErrTerminated is returned for any event after the terminal one.
	ErrTerminated = errors.New("progress: job already terminated")
)

// Reporter emits a single job's events in strictly increasing progress
// order, followed by at most one terminal event. After the first delivery
// failure it stops sending; the job itself keeps running.
type Reporter struct {
	jobID string
	sink  Sink

	mu       sync.Mutex
	last     int
	terminal *Event
	broken   error
}

// NewReporter creates a reporter for one job.
func NewReporter(jobID string, sink Sink) *Reporter {
	if sink == nil {
		sink = Discard
	}
	return &Reporter{jobID: jobID, sink: sink}
}

// Emit delivers ev if it respects the ordering rules. A delivery error is
// logged, latched and returned; later events are then dropped silently.
func (r *Reporter) Emit(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminal != nil {
		slog.Warn("progress_after_terminal", "job_id", r.jobID, "progress", ev.Progress, "status", ev.Status)
		return ErrTerminated
	}
	switch {
	case ev.Progress < Failed:
		ev.Progress = Failed
	case ev.Progress > Complete:
		ev.Progress = Complete
	}
	if !ev.IsTerminal() && ev.Progress <= r.last {
		slog.Debug("progress_out_of_order", "job_id", r.jobID, "progress", ev.Progress, "last", r.last)
		return ErrOutOfOrder
	}

	if ev.IsTerminal() {
		terminal := ev
		r.terminal = &terminal
	} else {
		r.last = ev.Progress
	}

	if r.broken != nil {
		return nil
	}
	if err := r.sink.Send(ev); err != nil {
		r.broken = err
		slog.Error("progress_delivery_failed", "job_id", r.jobID, "progress", ev.Progress, "error", err)
		return err
	}
	return nil
}

// Progress emits a non-terminal stage event.
func (r *Reporter) Progress(pct int, status, op string) error {
	return r.Emit(Event{Status: status, Progress: pct, Operation: op})
}

// Fail emits the terminal failure event.
func (r *Reporter) Fail(status, op string) error {
	return r.Emit(Event{Status: status, Progress: Failed, Operation: op})
}

// Complete emits the terminal success event.
func (r *Reporter) Complete(status string) error {
	return r.Emit(Event{Status: status, Progress: Complete, Operation: OpComplete})
}

// Last returns the highest non-terminal progress emitted so far.
func (r *Reporter) Last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Terminal returns the terminal event, if one has been emitted.
func (r *Reporter) Terminal() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminal == nil {
		return Event{}, false
	}
	return *r.terminal, true
}

// DeliveryErr returns the latched delivery error, if any.
func (r *Reporter) DeliveryErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broken
}
