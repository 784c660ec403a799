//go:build !linux

package usb

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/webbboot/companion/pkg/job"
)

// Enumerator has no device source on this host.
type Enumerator struct {
	Timeout time.Duration
}

// NewEnumerator returns an enumerator that always reports no devices.
func NewEnumerator(timeout time.Duration) *Enumerator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enumerator{Timeout: timeout}
}

// List returns an empty list.
func (e *Enumerator) List(ctx context.Context) ([]job.UsbDevice, error) {
	slog.Debug("usb_enumeration_unsupported", "os", runtime.GOOS)
	return []job.UsbDevice{}, nil
}
