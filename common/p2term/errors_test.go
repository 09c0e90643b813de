package p2term

import (
	"errors"
	"testing"
)

func TestCauseChainFlattensWrappedLevels(t *testing.T) {
	err := Wrap("read from stream", Wrap("dial peer", ErrTransport))
	got := CauseChain(err)
	want := "read from stream -> dial peer -> transport error"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCauseChainNil(t *testing.T) {
	if got := CauseChain(nil); got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestWrapNilCauseIsNil(t *testing.T) {
	if err := Wrap("msg", nil); err != nil {
		t.Fatalf("Wrap(_, nil) = %v, want nil", err)
	}
}

func TestWrapPreservesErrorsIs(t *testing.T) {
	err := Wrap("pty start failed", ErrPtyStart)
	if !errors.Is(err, ErrPtyStart) {
		t.Fatalf("errors.Is should see through Wrap to the sentinel")
	}
}
