package errors

import (
	stderrors "errors"
	"testing"
)

func TestWrap_Nil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := Wrapf(nil, "context %d", 1); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrap_PreservesChain(t *testing.T) {
	base := stderrors.New("boom")

	err := Wrap(base, "format failed")
	if err.Error() != "format failed: boom" {
		t.Errorf("unexpected message: %s", err)
	}
	if !stderrors.Is(err, base) {
		t.Error("wrapped error should match base with errors.Is")
	}

	err = Wrapf(base, "device %s", "/dev/sdb")
	if err.Error() != "device /dev/sdb: boom" {
		t.Errorf("unexpected message: %s", err)
	}
}
