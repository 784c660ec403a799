// Package platform executes the host-specific format, write and inspect
// commands behind a single Adapter interface. One variant is selected per
// operating system by New; callers never branch on the host themselves.
package platform

import "context"

// Result is the outcome of a command that ran to completion.
type Result struct {
	Success    bool
	Diagnostic string // native tool output, passed through verbatim
}

// Inspection is what the host can report about a device without mounting it.
type Inspection struct {
	SizeBytes   uint64 // 0 when unknown
	Filesystem  string
	MountPoints []string
}

// Adapter runs the native tools for one host platform.
//
// A returned error means the command could not be started at all; a
// command that ran and failed is reported through Result.
type Adapter interface {
	// Name identifies the variant, e.g. "linux".
	Name() string

	// Format creates a filesystem on the device.
	Format(ctx context.Context, device, filesystem, scheme string) (*Result, error)

	// WriteImage copies the image onto the device byte for byte. It blocks
	// until the underlying tool exits.
	WriteImage(ctx context.Context, imagePath, device string) (*Result, error)

	// Inspect queries size, filesystem and mount points.
	Inspect(ctx context.Context, device string) (*Inspection, error)
}
