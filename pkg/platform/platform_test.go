package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	out   *Output
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*Output, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.err != nil {
		return nil, f.err
	}
	if f.out == nil {
		return &Output{}, nil
	}
	return f.out, nil
}

func TestLinuxFormatCommand(t *testing.T) {
	tests := []struct {
		fs       string
		wantName string
		wantArgs []string
	}{
		{"FAT32", "mkfs.vfat", []string{"-I", "-F", "32", "-n", "WEBBOOT", "/dev/sdb"}},
		{"fat32", "mkfs.vfat", []string{"-I", "-F", "32", "-n", "WEBBOOT", "/dev/sdb"}},
		{"exFAT", "mkfs.exfat", []string{"-n", "WEBBOOT", "/dev/sdb"}},
		{"NTFS", "mkfs.ntfs", []string{"-Q", "-F", "-L", "WEBBOOT", "/dev/sdb"}},
		{"ext4", "mkfs.ext4", []string{"-F", "-L", "WEBBOOT", "/dev/sdb"}},
		{"btrfs", "mkfs", []string{"-t", "btrfs", "/dev/sdb"}},
	}

	for _, tt := range tests {
		name, args := linuxFormatCommand(tt.fs, VolumeLabel, "/dev/sdb")
		if name != tt.wantName || !reflect.DeepEqual(args, tt.wantArgs) {
			t.Errorf("%s: got %s %v, want %s %v", tt.fs, name, args, tt.wantName, tt.wantArgs)
		}
	}
}

func TestLinuxAdapter_FormatUsesSudo(t *testing.T) {
	runner := &fakeRunner{}
	a := NewLinuxAdapter(runner, true)

	res, err := a.Format(context.Background(), "/dev/sdb", "FAT32", "MBR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Errorf("expected success, got %+v", res)
	}
	if len(runner.calls) != 1 || runner.calls[0].name != "sudo" || runner.calls[0].args[0] != "mkfs.vfat" {
		t.Errorf("unexpected calls: %+v", runner.calls)
	}
}

func TestLinuxAdapter_FormatFailurePassesDiagnostic(t *testing.T) {
	runner := &fakeRunner{out: &Output{ExitCode: 1, Stderr: []byte("mkfs.vfat: unable to open /dev/sdb: Device or resource busy\n")}}
	a := NewLinuxAdapter(runner, false)

	res, err := a.Format(context.Background(), "/dev/sdb", "FAT32", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Diagnostic != "mkfs.vfat: unable to open /dev/sdb: Device or resource busy" {
		t.Errorf("unexpected diagnostic %q", res.Diagnostic)
	}
}

func TestLinuxAdapter_StartFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("executable file not found")}
	a := NewLinuxAdapter(runner, false)

	if _, err := a.WriteImage(context.Background(), "/tmp/a.iso", "/dev/sdb"); err == nil {
		t.Fatal("expected start failure")
	}
}

func TestLinuxAdapter_WriteImageArgs(t *testing.T) {
	runner := &fakeRunner{}
	a := NewLinuxAdapter(runner, false)

	if _, err := a.WriteImage(context.Background(), "/tmp/a.iso", "/dev/sdb"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := call{name: "dd", args: []string{"if=/tmp/a.iso", "of=/dev/sdb", "bs=4M", "conv=fsync"}}
	if !reflect.DeepEqual(runner.calls[0], want) {
		t.Errorf("got %+v, want %+v", runner.calls[0], want)
	}
}

func TestParseLsblk(t *testing.T) {
	data := []byte(`{"blockdevices": [
		{"name":"sdb", "size":16008609792, "fstype":null, "mountpoint":null,
		 "children": [
			{"name":"sdb1", "size":"16007561216", "fstype":"vfat", "mountpoint":"/media/usb"}
		 ]}
	]}`)

	info, err := parseLsblk(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SizeBytes != 16008609792 {
		t.Errorf("unexpected size %d", info.SizeBytes)
	}
	if !reflect.DeepEqual(info.MountPoints, []string{"/media/usb"}) {
		t.Errorf("unexpected mount points %v", info.MountPoints)
	}
}

func TestParseLsblk_Invalid(t *testing.T) {
	if _, err := parseLsblk([]byte(`{"blockdevices": []}`)); err == nil {
		t.Error("expected error for empty output")
	}
	if _, err := parseLsblk([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed output")
	}
}

func TestLinuxAdapter_InspectNonZeroExit(t *testing.T) {
	runner := &fakeRunner{out: &Output{ExitCode: 32, Stderr: []byte("lsblk: /dev/sdz: not a block device")}}
	a := NewLinuxAdapter(runner, false)

	if _, err := a.Inspect(context.Background(), "/dev/sdz"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDarwinAdapter_Format(t *testing.T) {
	runner := &fakeRunner{}
	a := NewDarwinAdapter(runner)

	if _, err := a.Format(context.Background(), "/dev/disk4", "exfat", "gpt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := call{name: "diskutil", args: []string{"eraseDisk", "ExFAT", "WEBBOOT", "GPT", "/dev/disk4"}}
	if !reflect.DeepEqual(runner.calls[0], want) {
		t.Errorf("got %+v, want %+v", runner.calls[0], want)
	}

	res, err := a.Format(context.Background(), "/dev/disk4", "NTFS", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || len(runner.calls) != 1 {
		t.Errorf("unsupported filesystem should fail without running diskutil: %+v", res)
	}
}

func TestParseDiskutilInfo(t *testing.T) {
	data := []byte(`   Device Identifier:         disk4
   Device Node:               /dev/disk4
   Type (Bundle):             msdos
   Mount Point:               /Volumes/USB
   Disk Size:                 16.0 GB (16008609792 Bytes) (exactly 31266816 512-Byte-Units)
`)
	info, err := parseDiskutilInfo(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SizeBytes != 16008609792 || info.Filesystem != "msdos" {
		t.Errorf("unexpected info %+v", info)
	}
	if !reflect.DeepEqual(info.MountPoints, []string{"/Volumes/USB"}) {
		t.Errorf("unexpected mount points %v", info.MountPoints)
	}

	if _, err := parseDiskutilInfo([]byte("Device Node: /dev/disk4\n")); err == nil {
		t.Error("expected error without a disk size")
	}
}

func TestWindowsAdapter_WriteImageQuotes(t *testing.T) {
	runner := &fakeRunner{}
	a := NewWindowsAdapter(runner)

	if _, err := a.WriteImage(context.Background(), `C:\it's.iso`, `\\.\PhysicalDrive2`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := runner.calls[0].args[2]
	want := `Copy-Item -LiteralPath 'C:\it''s.iso' -Destination '\\.\PhysicalDrive2'`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStubAdapter(t *testing.T) {
	var a Adapter = StubAdapter{}
	if _, err := a.Format(context.Background(), "/dev/x", "FAT32", ""); err == nil {
		t.Error("stub format should fail to start")
	}

	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	info, err := a.Inspect(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SizeBytes != 2048 || len(info.MountPoints) != 0 {
		t.Errorf("unexpected inspection %+v", info)
	}
}

func TestToResult(t *testing.T) {
	if r := toResult(&Output{ExitCode: 2}); r.Success || r.Diagnostic != "exit status 2" {
		t.Errorf("unexpected result %+v", r)
	}
	if r := toResult(&Output{ExitCode: 1, Stdout: []byte("Insufficient privileges\r\n")}); r.Diagnostic != "Insufficient privileges" {
		t.Errorf("unexpected diagnostic %q", r.Diagnostic)
	}
}
