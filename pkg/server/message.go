package server

import (
	"encoding/json"
	"errors"

	"github.com/webbboot/companion/pkg/job"
)

// jobMessage is a job as sent by the controller. Only iso may be omitted.
type jobMessage struct {
	Action     *string `json:"action"`
	ISO        *string `json:"iso"`
	Filesystem *string `json:"filesystem"`
	Scheme     *string `json:"scheme"`
	Device     *string `json:"device"`
}

var errMissingField = errors.New("missing required job field")

// decodeJob parses a controller payload. Any decode failure is reported to
// the controller as an invalid job format.
func decodeJob(data []byte) (job.Job, error) {
	var msg jobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return job.Job{}, err
	}
	if msg.Action == nil || msg.Filesystem == nil || msg.Scheme == nil || msg.Device == nil {
		return job.Job{}, errMissingField
	}

	j := job.Job{
		Action:          job.ParseAction(*msg.Action),
		Filesystem:      *msg.Filesystem,
		PartitionScheme: *msg.Scheme,
		Device:          *msg.Device,
	}
	if msg.ISO != nil {
		j.Image = *msg.ISO
	}
	return j, nil
}

// deviceSnapshot is the first message on every connection.
type deviceSnapshot struct {
	Devices []job.UsbDevice `json:"devices"`
}
