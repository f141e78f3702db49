package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTransport)
	if Reason(err) != ReasonTransport {
		t.Fatalf("expected reason %s, got %s", ReasonTransport, Reason(err))
	}
	if !HasReason(err, ReasonTransport) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonConnectTimeout)
	second := Wrap(first, ReasonTransport)
	if Reason(second) != ReasonConnectTimeout {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(ReasonFlashStatus, "status %s", "45000001")
	if Reason(err) != ReasonFlashStatus {
		t.Fatalf("expected reason %s, got %s", ReasonFlashStatus, Reason(err))
	}
	if err.Error() != "status 45000001" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonDecode) != nil {
		t.Fatalf("expected nil passthrough")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
