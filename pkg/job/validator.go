package job

import (
	"log/slog"
	"strings"
)

// Validate checks a job's structural preconditions. It never touches the
// filesystem, so it is safe to run before anything else.
func Validate(j Job) error {
	if strings.TrimSpace(j.Device) == "" {
		slog.Error("job_validation_failed", "reason", "empty_device")
		return NewError(KindValidation, "validate", "Error: No device selected", ErrEmptyDevice)
	}

	switch j.Action {
	case ActionCreate:
		if !j.HasImage() {
			slog.Error("job_validation_failed", "device", j.Device, "reason", "missing_image")
			return NewError(KindValidation, "validate", "Error: No ISO file specified", ErrMissingImage)
		}
	case ActionFormat:
	default:
		slog.Error("job_validation_failed", "device", j.Device, "action", j.Action, "reason", "unknown_action")
		return NewError(KindValidation, "validate", "Error: Unsupported action "+string(j.Action), ErrUnknownAction)
	}

	return nil
}
