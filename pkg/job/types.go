// Package job defines the job model shared by the validator, the device
// verifier and the executor: the submitted Job, the discovered UsbDevice,
// the DeviceInfo verification snapshot, and the error taxonomy.
package job

import (
	"fmt"
	"strings"
)

// Action selects what a job does to the target device.
type Action string

const (
	// ActionCreate formats the device and writes a disk image onto it.
	ActionCreate Action = "create"
	// ActionFormat only formats the device.
	ActionFormat Action = "format"
)

// ParseAction maps a wire action onto an Action. "restore" is what the web
// client sends for a plain format. Unknown values are returned unchanged and
// rejected later by Validate.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return ActionCreate
	case "format", "restore":
		return ActionFormat
	default:
		return Action(s)
	}
}

// Job is a single requested operation. A Job is treated as immutable once
// it has been handed to the executor.
type Job struct {
	Action          Action
	Image           string // empty when absent
	Filesystem      string
	PartitionScheme string
	Device          string
}

// HasImage reports whether an image path was supplied.
func (j Job) HasImage() bool {
	return strings.TrimSpace(j.Image) != ""
}

// FilesystemLabel returns the requested filesystem normalised for
// case-insensitive comparison.
func (j Job) FilesystemLabel() string {
	return strings.ToUpper(strings.TrimSpace(j.Filesystem))
}

func (j Job) String() string {
	return fmt.Sprintf("%s device=%s fs=%s scheme=%s image=%q",
		j.Action, j.Device, j.Filesystem, j.PartitionScheme, j.Image)
}

// UsbDevice is a discovered mass-storage candidate.
type UsbDevice struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"name"`
	VendorID    uint16  `json:"vendor_id"`
	ProductID   uint16  `json:"product_id"`
	SizeBytes   *uint64 `json:"size"`
	// MountPoint is always null on the wire; mount state is only known
	// after verification.
	MountPoint *string `json:"mount_point"`
}

// FallbackID is the synthesized identifier used when no device node can be
// resolved for a USB device.
func FallbackID(vendorID, productID uint16) string {
	return fmt.Sprintf("USB %04x:%04x", vendorID, productID)
}

// DeviceInfo is a point-in-time verification snapshot of one device. It is
// never cached: mount state can change between enumeration and execution.
type DeviceInfo struct {
	Path        string   `json:"path"`
	SizeBytes   uint64   `json:"size"`
	Filesystem  string   `json:"filesystem,omitempty"`
	MountPoints []string `json:"mount_points"`
}

// IsMounted reports whether any mount point references the device.
func (d *DeviceInfo) IsMounted() bool {
	return len(d.MountPoints) > 0
}
