// Package progress carries job status to the controller. A Reporter
// enforces the per-job ordering rules on top of a Sink that does the
// actual delivery.
package progress

import "encoding/json"

// Operation labels for each job stage.
const (
	OpValidation         = "validation"
	OpDeviceVerification = "device verification"
	OpImageDownload      = "image download"
	OpFormatting         = "formatting"
	OpImageWriting       = "iso writing"
	OpVerification       = "verification"
	OpComplete           = "complete"
)

// Progress values of the fixed stage boundaries.
const (
	Failed     = 0
	Verifying  = 5
	Fetching   = 7
	Formatting = 10
	Writing    = 50
	// WriteCeiling is the highest value a periodic write tick may report.
	WriteCeiling    = 90
	VerifyingWrite  = 95
	Complete        = 100
	WriteTickAmount = 5
)

// Event is one progress message for the controller.
type Event struct {
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Operation string `json:"current_operation"`
}

// IsTerminal reports whether the event ends a job.
func (e Event) IsTerminal() bool {
	return e.Progress == Failed || e.Progress >= Complete
}

// Marshal encodes the event in its wire form.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// StatusMessage is the reply to a payload that could not be decoded as a
// job. It deliberately has no current_operation field.
type StatusMessage struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// InvalidJob is the reply sent for malformed job payloads.
var InvalidJob = StatusMessage{Status: "Error: Invalid job format", Progress: Failed}

// Sink delivers events to a controller.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error {
	return f(e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })
