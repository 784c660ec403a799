//go:build !linux

package usb

import (
	"context"
	"testing"
)

func TestList_UnsupportedHostIsEmpty(t *testing.T) {
	devices, err := NewEnumerator(0).List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected an empty, non-nil list, got %#v", devices)
	}
}
