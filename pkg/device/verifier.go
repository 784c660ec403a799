// Package device verifies that a target device exists and is safe to
// operate on, producing a fresh DeviceInfo snapshot on every call.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/webbboot/companion/pkg/job"
	"github.com/webbboot/companion/pkg/platform"
)

// Inspector is the slice of the platform adapter the verifier needs.
type Inspector interface {
	Inspect(ctx context.Context, device string) (*platform.Inspection, error)
}

// Verifier checks device existence, size, filesystem and mount state.
type Verifier struct {
	inspector Inspector
	mounts    MountTable
}

// NewVerifier creates a verifier. mounts may be nil, in which case only the
// adapter's own mount information is used.
func NewVerifier(inspector Inspector, mounts MountTable) *Verifier {
	return &Verifier{inspector: inspector, mounts: mounts}
}

// Verify snapshots the device at path. Verification is all-or-nothing: if
// any query fails no partial DeviceInfo is returned.
func (v *Verifier) Verify(ctx context.Context, path string) (*job.DeviceInfo, error) {
	slog.Info("device_verify_start", "device", path)

	if _, err := os.Stat(path); err != nil {
		slog.Error("device_not_found", "device", path, "error", err)
		return nil, job.NewError(job.KindDevice, "verify",
			"Error: Device "+path+" not found", job.ErrDeviceNotFound)
	}

	inspection, err := v.inspector.Inspect(ctx, path)
	if err != nil {
		slog.Error("device_inspect_failed", "device", path, "error", err)
		return nil, job.NewError(job.KindDevice, "verify",
			"Device verification failed: Unable to get device information", wrapUnavailable(err))
	}

	mountPoints := slices.Clone(inspection.MountPoints)
	if v.mounts != nil {
		table, err := v.mounts.Mounts(ctx)
		if err != nil {
			slog.Error("mount_table_failed", "device", path, "error", err)
			return nil, job.NewError(job.KindDevice, "verify",
				"Device verification failed: Unable to get device information", wrapUnavailable(err))
		}
		for _, m := range table {
			if belongsTo(m.Device, path) && !slices.Contains(mountPoints, m.MountPoint) {
				mountPoints = append(mountPoints, m.MountPoint)
			}
		}
	}

	info := &job.DeviceInfo{
		Path:        path,
		SizeBytes:   inspection.SizeBytes,
		Filesystem:  inspection.Filesystem,
		MountPoints: mountPoints,
	}
	slog.Info("device_verified", "device", path, "size_bytes", info.SizeBytes,
		"filesystem", info.Filesystem, "mounted", info.IsMounted())
	return info, nil
}

// CheckUnmounted verifies the device and turns a mounted device into a
// policy failure.
func (v *Verifier) CheckUnmounted(ctx context.Context, path string) (*job.DeviceInfo, error) {
	info, err := v.Verify(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.IsMounted() {
		slog.Warn("device_mounted", "device", path, "mount_points", info.MountPoints)
		return info, job.NewError(job.KindDevice, "verify",
			"Error: Device is currently mounted. Please unmount first.", job.ErrDeviceMounted)
	}
	return info, nil
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %w", job.ErrInfoUnavailable, err)
}
