package fsm

import "github.com/webbboot/companion/pkg/job"

// JobRequest is the FSM input
type JobRequest struct {
	JobID      string
	Action     string
	Image      string
	Filesystem string
	Scheme     string
	Device     string
}

// Job rebuilds the submitted job from the request.
func (r *JobRequest) Job() job.Job {
	return job.Job{
		Action:          job.Action(r.Action),
		Image:           r.Image,
		Filesystem:      r.Filesystem,
		PartitionScheme: r.Scheme,
		Device:          r.Device,
	}
}

// JobResponse is the FSM output (accumulated across transitions)
type JobResponse struct {
	// From Verify
	DeviceSize uint64

	// From FetchImage; ImagePath is the local file the write stage reads
	ImagePath   string
	ImageSHA256 string
	ImageSize   int64
}

// State names
const (
	StateValidate    = "validate"
	StateVerify      = "verify"
	StateFetchImage  = "fetch_image"
	StateFormat      = "format"
	StateWriteImage  = "write_image"
	StateVerifyWrite = "verify_write"
	StateComplete    = "complete"
	StateFailed      = "failed"
)

// Status texts sent to the controller.
const (
	statusVerifying      = "Verifying device..."
	statusFetching       = "Downloading image..."
	statusFormatting     = "Formatting device..."
	statusWriting        = "Writing ISO to device..."
	statusWriteTick      = "Writing ISO... %d%%"
	statusVerifyingWrite = "Verifying write operation..."
	statusComplete       = "Operation completed successfully!"
)
