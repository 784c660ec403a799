package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/webbboot/companion/pkg/errors"
)

// WindowsAdapter formats with format.com and copies the image with
// PowerShell.
type WindowsAdapter struct {
	Runner Runner
}

func NewWindowsAdapter(runner Runner) *WindowsAdapter {
	slog.Info("platform_adapter_init", "platform", "windows")
	return &WindowsAdapter{Runner: runner}
}

func (a *WindowsAdapter) Name() string { return "windows" }

func (a *WindowsAdapter) Format(ctx context.Context, device, filesystem, scheme string) (*Result, error) {
	fs := strings.ToUpper(strings.TrimSpace(filesystem))
	if fs == "" {
		fs = "FAT32"
	}
	slog.Info("format_device", "device", device, "filesystem", fs, "scheme", scheme)
	out, err := a.Runner.Run(ctx, "format", device, "/FS:"+fs, "/V:"+VolumeLabel, "/Q", "/Y")
	if err != nil {
		return nil, errors.Wrap(err, "format command")
	}
	return toResult(out), nil
}

func (a *WindowsAdapter) WriteImage(ctx context.Context, imagePath, device string) (*Result, error) {
	slog.Info("write_image", "image", imagePath, "device", device)
	script := fmt.Sprintf("Copy-Item -LiteralPath '%s' -Destination '%s'", psQuote(imagePath), psQuote(device))
	out, err := a.Runner.Run(ctx, "powershell", "-NoProfile", "-Command", script)
	if err != nil {
		return nil, errors.Wrap(err, "write command")
	}
	return toResult(out), nil
}

func (a *WindowsAdapter) Inspect(ctx context.Context, device string) (*Inspection, error) {
	return statInspect(device)
}

// psQuote escapes a value for a single-quoted PowerShell string.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
