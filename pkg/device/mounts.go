package device

import (
	"context"
	"regexp"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/webbboot/companion/pkg/errors"
)

// Mount is one entry of the host mount table.
type Mount struct {
	Device     string
	MountPoint string
	Fstype     string
}

// MountTable lists the host's current mounts.
type MountTable interface {
	Mounts(ctx context.Context) ([]Mount, error)
}

// HostMounts reads the mount table through gopsutil.
type HostMounts struct{}

func (HostMounts) Mounts(ctx context.Context) ([]Mount, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mount table")
	}
	mounts := make([]Mount, 0, len(parts))
	for _, p := range parts {
		mounts = append(mounts, Mount{Device: p.Device, MountPoint: p.Mountpoint, Fstype: p.Fstype})
	}
	return mounts, nil
}

// Partition suffixes relative to the whole-disk node: sdb1 after a letter,
// mmcblk0p1, nvme0n1p2 and disk4s1 after a digit.
var (
	partitionAfterLetter = regexp.MustCompile(`^\d+$`)
	partitionAfterDigit  = regexp.MustCompile(`^[ps]\d+$`)
)

// belongsTo reports whether mountDevice is node itself or one of its
// partitions.
func belongsTo(mountDevice, node string) bool {
	if mountDevice == node {
		return true
	}
	rest, ok := strings.CutPrefix(mountDevice, node)
	if !ok || rest == "" || node == "" {
		return false
	}
	if last := node[len(node)-1]; last >= '0' && last <= '9' {
		return partitionAfterDigit.MatchString(rest)
	}
	return partitionAfterLetter.MatchString(rest)
}
