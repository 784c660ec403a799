package platform

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/webbboot/companion/pkg/errors"
)

// DarwinAdapter formats with diskutil and writes with BSD dd.
type DarwinAdapter struct {
	Runner Runner
	Label  string
}

func NewDarwinAdapter(runner Runner) *DarwinAdapter {
	slog.Info("platform_adapter_init", "platform", "darwin")
	return &DarwinAdapter{Runner: runner, Label: VolumeLabel}
}

func (a *DarwinAdapter) Name() string { return "darwin" }

func (a *DarwinAdapter) Format(ctx context.Context, device, filesystem, scheme string) (*Result, error) {
	personality, ok := diskutilPersonality(filesystem)
	if !ok {
		return &Result{Diagnostic: fmt.Sprintf("filesystem %s is not supported by diskutil", filesystem)}, nil
	}

	slog.Info("format_device", "device", device, "filesystem", personality, "scheme", diskutilScheme(scheme))
	out, err := a.Runner.Run(ctx, "diskutil", "eraseDisk", personality, a.Label, diskutilScheme(scheme), device)
	if err != nil {
		return nil, errors.Wrap(err, "format command")
	}
	return toResult(out), nil
}

func (a *DarwinAdapter) WriteImage(ctx context.Context, imagePath, device string) (*Result, error) {
	slog.Info("write_image", "image", imagePath, "device", device)
	out, err := a.Runner.Run(ctx, "dd", "if="+imagePath, "of="+device, "bs="+DarwinBlockSize)
	if err != nil {
		return nil, errors.Wrap(err, "write command")
	}
	return toResult(out), nil
}

func (a *DarwinAdapter) Inspect(ctx context.Context, device string) (*Inspection, error) {
	out, err := a.Runner.Run(ctx, "diskutil", "info", device)
	if err != nil {
		return nil, errors.Wrap(err, "diskutil info")
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("diskutil info exited %d: %s", out.ExitCode, trimNewlines(out.Stderr))
	}
	return parseDiskutilInfo(out.Stdout)
}

func diskutilPersonality(filesystem string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(filesystem)) {
	case "FAT32", "VFAT", "FAT":
		return "FAT32", true
	case "EXFAT":
		return "ExFAT", true
	case "APFS":
		return "APFS", true
	case "HFS+", "JHFS+":
		return "JHFS+", true
	default:
		return "", false
	}
}

func diskutilScheme(scheme string) string {
	switch strings.ToUpper(strings.TrimSpace(scheme)) {
	case "GPT":
		return "GPT"
	case "APM":
		return "APM"
	default:
		return DefaultScheme
	}
}

var diskSizeBytes = regexp.MustCompile(`\((\d+) Bytes\)`)

// parseDiskutilInfo reads the "Key: Value" lines of `diskutil info`.
func parseDiskutilInfo(data []byte) (*Inspection, error) {
	info := &Inspection{}
	sawSize := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Disk Size", "Total Size":
			if m := diskSizeBytes.FindStringSubmatch(value); m != nil {
				size, err := strconv.ParseUint(m[1], 10, 64)
				if err == nil {
					info.SizeBytes = size
					sawSize = true
				}
			}
		case "Mount Point":
			if value != "" && !strings.HasPrefix(value, "Not applicable") {
				info.MountPoints = append(info.MountPoints, value)
			}
		case "Type (Bundle)":
			info.Filesystem = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read diskutil output")
	}
	if !sawSize {
		return nil, fmt.Errorf("diskutil info reported no disk size")
	}
	return info, nil
}
