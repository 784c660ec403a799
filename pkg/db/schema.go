package db

// Status constants
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// JobRecord is the persisted history of one job.
type JobRecord struct {
	ID           string
	Action       string
	Device       string
	Image        string
	Filesystem   string
	Scheme       string
	Status       string
	Progress     int
	Operation    string
	ImageSHA256  string
	ErrorMessage string
	CreatedAt    string
	UpdatedAt    string
}
