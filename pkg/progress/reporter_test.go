package progress

import (
	"encoding/json"
	"errors"
	"testing"
)

type recorder struct {
	events []Event
	failAt int
}

func (r *recorder) Send(e Event) error {
	if r.failAt > 0 && len(r.events)+1 >= r.failAt {
		return errors.New("connection closed")
	}
	r.events = append(r.events, e)
	return nil
}

func TestReporter_Ordering(t *testing.T) {
	rec := &recorder{}
	rep := NewReporter("job-1", rec)

	if err := rep.Progress(Verifying, "Verifying device...", OpDeviceVerification); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rep.Progress(Formatting, "Formatting device...", OpFormatting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rep.Progress(Formatting, "again", OpFormatting); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder, got %v", err)
	}
	if err := rep.Progress(Verifying, "backwards", OpFormatting); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder, got %v", err)
	}
	if err := rep.Complete("done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rep.Fail("late", OpFormatting); !errors.Is(err, ErrTerminated) {
		t.Errorf("expected ErrTerminated, got %v", err)
	}

	want := []int{Verifying, Formatting, Complete}
	if len(rec.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(rec.events))
	}
	for i, e := range rec.events {
		if e.Progress != want[i] {
			t.Errorf("event %d: expected progress %d, got %d", i, want[i], e.Progress)
		}
	}
}

func TestReporter_FailInterruptsSequence(t *testing.T) {
	rec := &recorder{}
	rep := NewReporter("job-2", rec)

	rep.Progress(Writing, "Writing ISO to device...", OpImageWriting)
	if err := rep.Fail("ISO write failed: io error", OpImageWriting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	term, ok := rep.Terminal()
	if !ok || term.Progress != Failed {
		t.Fatalf("expected terminal failure, got %+v (ok=%v)", term, ok)
	}
	if rep.Last() != Writing {
		t.Errorf("expected last %d, got %d", Writing, rep.Last())
	}
}

func TestReporter_DeliveryFailureLatches(t *testing.T) {
	rec := &recorder{failAt: 2}
	rep := NewReporter("job-3", rec)

	if err := rep.Progress(Verifying, "a", OpDeviceVerification); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rep.Progress(Formatting, "b", OpFormatting); err == nil {
		t.Fatal("expected delivery error")
	}
	if err := rep.Complete("c"); err != nil {
		t.Errorf("events after a delivery failure should be dropped quietly, got %v", err)
	}
	if rep.DeliveryErr() == nil {
		t.Error("delivery error should be latched")
	}
	if len(rec.events) != 1 {
		t.Errorf("expected 1 delivered event, got %d", len(rec.events))
	}
	if _, ok := rep.Terminal(); !ok {
		t.Error("terminal state should still be tracked after delivery failure")
	}
}

func TestEvent_WireFormat(t *testing.T) {
	raw, err := Event{Status: "Formatting device...", Progress: 10, Operation: OpFormatting}.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got["current_operation"] != OpFormatting || got["progress"] != float64(10) {
		t.Errorf("unexpected wire form: %s", raw)
	}

	raw, _ = json.Marshal(InvalidJob)
	if string(raw) != `{"status":"Error: Invalid job format","progress":0}` {
		t.Errorf("unexpected invalid job reply: %s", raw)
	}
}
