//go:build linux

package usb

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// readAttr reads a trimmed sysfs attribute.
func readAttr(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readHex reads a hexadecimal sysfs attribute such as idVendor.
func readHex(path string, bitSize int) (uint64, error) {
	s, err := readAttr(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, bitSize)
}

// readDescriptorString reads a string descriptor attribute, giving up
// after timeout. Descriptor reads can stall on misbehaving devices.
func readDescriptorString(ctx context.Context, path string, timeout time.Duration) (string, bool) {
	type result struct {
		value string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := readAttr(path)
		ch <- result{v, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil || r.value == "" {
			return "", false
		}
		return r.value, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// interfaceClasses returns bInterfaceClass for each interface directory
// ("1-1:1.0") of a device.
func interfaceClasses(devPath string) []uint8 {
	entries, err := os.ReadDir(devPath)
	if err != nil {
		return nil
	}

	name := filepath.Base(devPath)
	var classes []uint8
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), name+":") {
			continue
		}
		class, err := readHex(filepath.Join(devPath, entry.Name(), "bInterfaceClass"), 8)
		if err != nil {
			continue
		}
		classes = append(classes, uint8(class))
	}
	return classes
}

// blockNodes returns the kernel names of block devices bound beneath a USB
// device's interfaces, e.g. "sdb".
func blockNodes(devPath string) []string {
	pattern := filepath.Join(devPath, filepath.Base(devPath)+":*", "host*", "target*", "*", "block", "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names
}
