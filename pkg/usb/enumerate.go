//go:build linux

package usb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/webbboot/companion/pkg/errors"
	"github.com/webbboot/companion/pkg/job"
)

const (
	// ClassMassStorage is the USB interface class for mass storage.
	ClassMassStorage = 0x08

	DefaultSysfsPath = "/sys/bus/usb/devices"
	DefaultBlockPath = "/sys/block"
	DefaultDevPath   = "/dev"
	sectorSize       = 512
	unknownVendor    = "Unknown"
	unknownProduct   = "Device"
)

// Enumerator lists mass-storage candidates. Each call re-enumerates from
// scratch; nothing is cached between calls.
type Enumerator struct {
	SysfsPath string
	BlockPath string
	DevPath   string
	// Timeout bounds each descriptor string read.
	Timeout time.Duration
}

// NewEnumerator returns an enumerator over the live sysfs tree.
func NewEnumerator(timeout time.Duration) *Enumerator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enumerator{
		SysfsPath: DefaultSysfsPath,
		BlockPath: DefaultBlockPath,
		DevPath:   DefaultDevPath,
		Timeout:   timeout,
	}
}

// List enumerates USB devices exposing a mass-storage interface.
func (e *Enumerator) List(ctx context.Context) ([]job.UsbDevice, error) {
	entries, err := os.ReadDir(e.SysfsPath)
	if err != nil {
		slog.Error("usb_enumeration_failed", "path", e.SysfsPath, "error", err)
		return nil, errors.Wrap(err, "failed to list USB devices")
	}

	devices := make([]job.UsbDevice, 0, 4)
	for _, entry := range entries {
		name := entry.Name()
		// Skip root hubs (usb1) and interface entries (1-1:1.0).
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}

		dev, ok := e.probe(ctx, filepath.Join(e.SysfsPath, name))
		if ok {
			devices = append(devices, dev)
		}
	}

	slog.Info("usb_enumeration_complete", "device_count", len(devices))
	return devices, nil
}

func (e *Enumerator) probe(ctx context.Context, devPath string) (job.UsbDevice, bool) {
	vendorID, err := readHex(filepath.Join(devPath, "idVendor"), 16)
	if err != nil {
		return job.UsbDevice{}, false
	}
	productID, err := readHex(filepath.Join(devPath, "idProduct"), 16)
	if err != nil {
		return job.UsbDevice{}, false
	}

	if !slices.Contains(interfaceClasses(devPath), ClassMassStorage) {
		return job.UsbDevice{}, false
	}

	vid, pid := uint16(vendorID), uint16(productID)
	fallback := job.FallbackID(vid, pid)
	dev := job.UsbDevice{
		ID:          fallback,
		DisplayName: fmt.Sprintf("%s (%s)", e.displayName(ctx, devPath, vid, pid), fallback),
		VendorID:    vid,
		ProductID:   pid,
	}

	if nodes := blockNodes(devPath); len(nodes) > 0 {
		dev.ID = filepath.Join(e.DevPath, nodes[0])
		dev.SizeBytes = e.blockSize(nodes[0])
	}

	slog.Debug("usb_device_found", "id", dev.ID, "vendor_id", fmt.Sprintf("%04x", vid), "product_id", fmt.Sprintf("%04x", pid))
	return dev, true
}

// displayName combines the manufacturer and product strings, falling back
// to default labels when a descriptor cannot be read in time.
func (e *Enumerator) displayName(ctx context.Context, devPath string, vid, pid uint16) string {
	manufacturer, okM := readDescriptorString(ctx, filepath.Join(devPath, "manufacturer"), e.Timeout)
	product, okP := readDescriptorString(ctx, filepath.Join(devPath, "product"), e.Timeout)
	if !okM && !okP {
		return fmt.Sprintf("USB Device %04x:%04x", vid, pid)
	}
	if !okM {
		manufacturer = unknownVendor
	}
	if !okP {
		product = unknownProduct
	}
	return strings.TrimSpace(manufacturer + " " + product)
}

// blockSize reads the node size without opening or mounting it.
func (e *Enumerator) blockSize(node string) *uint64 {
	s, err := readAttr(filepath.Join(e.BlockPath, node, "size"))
	if err != nil {
		return nil
	}
	sectors, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil
	}
	size := sectors * sectorSize
	return &size
}
