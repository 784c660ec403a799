//go:build linux

package usb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeSysfs lays out a minimal sysfs tree for one device.
type fakeSysfs struct {
	root string
}

func newFakeSysfs(t *testing.T) *fakeSysfs {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"bus", "block"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	return &fakeSysfs{root: root}
}

func (f *fakeSysfs) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func (f *fakeSysfs) enumerator() *Enumerator {
	return &Enumerator{
		SysfsPath: filepath.Join(f.root, "bus"),
		BlockPath: filepath.Join(f.root, "block"),
		DevPath:   "/dev",
		Timeout:   100 * time.Millisecond,
	}
}

func TestList_MassStorageWithBlockNode(t *testing.T) {
	fs := newFakeSysfs(t)
	fs.write(t, "bus/1-2/idVendor", "0781")
	fs.write(t, "bus/1-2/idProduct", "5581")
	fs.write(t, "bus/1-2/manufacturer", "SanDisk")
	fs.write(t, "bus/1-2/product", "Ultra")
	fs.write(t, "bus/1-2/1-2:1.0/bInterfaceClass", "08")
	fs.write(t, "bus/1-2/1-2:1.0/host6/target6:0:0/6:0:0:0/block/sdb/dev", "8:16")
	fs.write(t, "block/sdb/size", "31266816")

	devices, err := fs.enumerator().List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}

	dev := devices[0]
	if dev.ID != "/dev/sdb" {
		t.Errorf("unexpected id %q", dev.ID)
	}
	if dev.DisplayName != "SanDisk Ultra (USB 0781:5581)" {
		t.Errorf("unexpected name %q", dev.DisplayName)
	}
	if dev.VendorID != 0x0781 || dev.ProductID != 0x5581 {
		t.Errorf("unexpected ids %04x:%04x", dev.VendorID, dev.ProductID)
	}
	if dev.SizeBytes == nil || *dev.SizeBytes != 31266816*512 {
		t.Errorf("unexpected size %v", dev.SizeBytes)
	}
}

func TestList_SkipsNonStorageAndHubs(t *testing.T) {
	fs := newFakeSysfs(t)
	fs.write(t, "bus/usb1/idVendor", "1d6b")
	fs.write(t, "bus/usb1/idProduct", "0002")
	fs.write(t, "bus/1-1/idVendor", "046d")
	fs.write(t, "bus/1-1/idProduct", "c52b")
	fs.write(t, "bus/1-1/1-1:1.0/bInterfaceClass", "03")

	devices, err := fs.enumerator().List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected no devices, got %+v", devices)
	}
}

func TestList_FallbacksWithoutNodeOrStrings(t *testing.T) {
	fs := newFakeSysfs(t)
	fs.write(t, "bus/2-1/idVendor", "abcd")
	fs.write(t, "bus/2-1/idProduct", "0001")
	fs.write(t, "bus/2-1/2-1:1.0/bInterfaceClass", "08")

	devices, err := fs.enumerator().List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	if devices[0].ID != "USB abcd:0001" {
		t.Errorf("unexpected id %q", devices[0].ID)
	}
	if devices[0].DisplayName != "USB Device abcd:0001 (USB abcd:0001)" {
		t.Errorf("unexpected name %q", devices[0].DisplayName)
	}
	if devices[0].SizeBytes != nil {
		t.Error("size should be absent without a block node")
	}
}

func TestList_PartialDescriptorStrings(t *testing.T) {
	fs := newFakeSysfs(t)
	fs.write(t, "bus/3-1/idVendor", "0951")
	fs.write(t, "bus/3-1/idProduct", "1666")
	fs.write(t, "bus/3-1/product", "DataTraveler 3.0")
	fs.write(t, "bus/3-1/3-1:1.0/bInterfaceClass", "08")

	devices, err := fs.enumerator().List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices[0].DisplayName != "Unknown DataTraveler 3.0 (USB 0951:1666)" {
		t.Errorf("unexpected name %q", devices[0].DisplayName)
	}
}

func TestList_MissingSysfs(t *testing.T) {
	e := &Enumerator{SysfsPath: filepath.Join(t.TempDir(), "missing"), Timeout: time.Millisecond}
	if _, err := e.List(context.Background()); err == nil {
		t.Error("expected error for missing sysfs tree")
	}
}

func TestReadHex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attr")
	os.WriteFile(path, []byte("0x08\n"), 0o644)

	v, err := readHex(path, 8)
	if err != nil || v != 8 {
		t.Errorf("readHex = %d, %v", v, err)
	}
}
