package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/webbboot/companion/pkg/errors"
)

// LinuxAdapter formats with the mkfs family, writes with dd and inspects
// with lsblk.
type LinuxAdapter struct {
	Runner Runner
	Sudo   bool
	Label  string
}

// NewLinuxAdapter creates a Linux adapter. Destructive commands go through
// sudo unless the process already runs as root.
func NewLinuxAdapter(runner Runner, sudo bool) *LinuxAdapter {
	slog.Info("platform_adapter_init", "platform", "linux", "sudo", sudo)
	return &LinuxAdapter{Runner: runner, Sudo: sudo, Label: VolumeLabel}
}

func (a *LinuxAdapter) Name() string { return "linux" }

func (a *LinuxAdapter) Format(ctx context.Context, device, filesystem, scheme string) (*Result, error) {
	name, args := linuxFormatCommand(filesystem, a.Label, device)
	name, args = privileged(a.Sudo, name, args...)

	// mkfs writes straight to the node; the partition scheme is left as is.
	slog.Info("format_device", "device", device, "filesystem", filesystem, "scheme", scheme, "command", name)
	out, err := a.Runner.Run(ctx, name, args...)
	if err != nil {
		return nil, errors.Wrap(err, "format command")
	}
	return toResult(out), nil
}

func (a *LinuxAdapter) WriteImage(ctx context.Context, imagePath, device string) (*Result, error) {
	name, args := privileged(a.Sudo, "dd",
		"if="+imagePath, "of="+device, "bs="+LinuxBlockSize, "conv=fsync")

	slog.Info("write_image", "image", imagePath, "device", device)
	out, err := a.Runner.Run(ctx, name, args...)
	if err != nil {
		return nil, errors.Wrap(err, "write command")
	}
	return toResult(out), nil
}

func (a *LinuxAdapter) Inspect(ctx context.Context, device string) (*Inspection, error) {
	out, err := a.Runner.Run(ctx, "lsblk", "-J", "-b", "-o", "NAME,SIZE,FSTYPE,MOUNTPOINT", device)
	if err != nil {
		return nil, errors.Wrap(err, "lsblk")
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("lsblk exited %d: %s", out.ExitCode, trimNewlines(out.Stderr))
	}
	return parseLsblk(out.Stdout)
}

// linuxFormatCommand picks the mkfs variant for a case-insensitive
// filesystem label.
func linuxFormatCommand(filesystem, label, device string) (string, []string) {
	fs := strings.ToUpper(strings.TrimSpace(filesystem))
	switch fs {
	case "FAT32", "VFAT", "FAT":
		return "mkfs.vfat", []string{"-I", "-F", "32", "-n", label, device}
	case "FAT16":
		return "mkfs.vfat", []string{"-I", "-F", "16", "-n", label, device}
	case "EXFAT":
		return "mkfs.exfat", []string{"-n", label, device}
	case "NTFS":
		return "mkfs.ntfs", []string{"-Q", "-F", "-L", label, device}
	case "EXT4", "EXT3", "EXT2":
		return "mkfs." + strings.ToLower(fs), []string{"-F", "-L", label, device}
	default:
		return "mkfs", []string{"-t", strings.ToLower(fs), device}
	}
}

// lsblkDevice is one node of `lsblk -J -b` output.
type lsblkDevice struct {
	Name       string        `json:"name"`
	Size       lsblkSize     `json:"size"`
	Fstype     string        `json:"fstype"`
	Mountpoint string        `json:"mountpoint"`
	Children   []lsblkDevice `json:"children"`
}

type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

// lsblkSize accepts both the numeric and the quoted size emitted by
// different util-linux releases.
type lsblkSize uint64

func (s *lsblkSize) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid lsblk size %q: %w", raw, err)
	}
	*s = lsblkSize(v)
	return nil
}

func parseLsblk(data []byte) (*Inspection, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "failed to parse lsblk output")
	}
	if len(out.BlockDevices) == 0 {
		return nil, fmt.Errorf("lsblk reported no block device")
	}

	dev := out.BlockDevices[0]
	info := &Inspection{
		SizeBytes:  uint64(dev.Size),
		Filesystem: dev.Fstype,
	}
	collectMountpoints(&dev, &info.MountPoints)
	return info, nil
}

func collectMountpoints(dev *lsblkDevice, mounts *[]string) {
	if dev.Mountpoint != "" {
		*mounts = append(*mounts, dev.Mountpoint)
	}
	for i := range dev.Children {
		collectMountpoints(&dev.Children[i], mounts)
	}
}
