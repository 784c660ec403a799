package platform

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/webbboot/companion/pkg/errors"
)

// StubAdapter is used on hosts without a native variant. It can inspect a
// node but refuses to format or write.
type StubAdapter struct{}

func (StubAdapter) Name() string { return "stub" }

func (StubAdapter) Format(ctx context.Context, device, filesystem, scheme string) (*Result, error) {
	return nil, fmt.Errorf("formatting not supported on %s", runtime.GOOS)
}

func (StubAdapter) WriteImage(ctx context.Context, imagePath, device string) (*Result, error) {
	return nil, fmt.Errorf("image writing not supported on %s", runtime.GOOS)
}

func (StubAdapter) Inspect(ctx context.Context, device string) (*Inspection, error) {
	return statInspect(device)
}

// statInspect reports the node size only; it cannot see filesystems or
// mounts.
func statInspect(device string) (*Inspection, error) {
	fi, err := os.Stat(device)
	if err != nil {
		return nil, errors.Wrap(err, "stat device")
	}
	return &Inspection{SizeBytes: uint64(fi.Size())}, nil
}
