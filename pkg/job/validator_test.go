package job

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr error
	}{
		{"format ok", Job{Action: ActionFormat, Device: "/dev/sdb", Filesystem: "FAT32"}, nil},
		{"create ok", Job{Action: ActionCreate, Device: "/dev/sdb", Image: "/tmp/a.iso"}, nil},
		{"empty device", Job{Action: ActionFormat, Device: ""}, ErrEmptyDevice},
		{"blank device", Job{Action: ActionFormat, Device: "   "}, ErrEmptyDevice},
		{"empty device wins over missing image", Job{Action: ActionCreate}, ErrEmptyDevice},
		{"create without image", Job{Action: ActionCreate, Device: "/dev/sdb"}, ErrMissingImage},
		{"create with blank image", Job{Action: ActionCreate, Device: "/dev/sdb", Image: " "}, ErrMissingImage},
		{"format ignores image", Job{Action: ActionFormat, Device: "/dev/sdb", Image: "/tmp/a.iso"}, nil},
		{"unknown action", Job{Action: Action("burn"), Device: "/dev/sdb"}, ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.job)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var jerr *Error
			if !errors.As(err, &jerr) || jerr.Kind != KindValidation {
				t.Errorf("expected validation kind, got %v", err)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	tests := map[string]Action{
		"create":  ActionCreate,
		"CREATE":  ActionCreate,
		"format":  ActionFormat,
		"restore": ActionFormat,
		"burn":    Action("burn"),
	}
	for in, want := range tests {
		if got := ParseAction(in); got != want {
			t.Errorf("ParseAction(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatus(t *testing.T) {
	err := NewError(KindDevice, "verify", "Error: Device /dev/sdz not found", ErrDeviceNotFound)
	if got := Status(err); got != "Error: Device /dev/sdz not found" {
		t.Errorf("unexpected status %q", got)
	}
	if got := Status(errors.New("boom")); got != "Error: boom" {
		t.Errorf("unexpected fallback status %q", got)
	}
}

func TestDeviceInfo_IsMounted(t *testing.T) {
	info := &DeviceInfo{Path: "/dev/sdb"}
	if info.IsMounted() {
		t.Error("device without mount points should not be mounted")
	}
	info.MountPoints = []string{"/media/usb"}
	if !info.IsMounted() {
		t.Error("device with mount points should be mounted")
	}
}
