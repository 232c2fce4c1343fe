package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(PhaseLift, KindInternal).
		Path("func[3]", "op[12]").
		Detail("value stack underflow: need %d, have %d", 2, 1).
		Build()

	msg := err.Error()
	for _, want := range []string{"[lift]", "internal", "func[3].op[12]", "need 2, have 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestErrorCauseChain(t *testing.T) {
	cause := fmt.Errorf("read failed")
	err := Load("decode module", cause)

	if !stderrors.Is(err, cause) {
		t.Errorf("cause not reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "caused by: read failed") {
		t.Errorf("cause missing from message: %q", err.Error())
	}
}

func TestIsMatchesOnPhaseAndKind(t *testing.T) {
	err := Unsupported(PhaseAnalyze, "SIMD")

	if !stderrors.Is(err, &Error{Phase: PhaseAnalyze, Kind: KindUnsupported}) {
		t.Errorf("exact phase+kind should match")
	}
	if !stderrors.Is(err, &Error{Kind: KindUnsupported}) {
		t.Errorf("kind-only target should match any phase")
	}
	if stderrors.Is(err, &Error{Phase: PhaseLift, Kind: KindUnsupported}) {
		t.Errorf("wrong phase should not match")
	}
	if stderrors.Is(err, stderrors.New("other")) {
		t.Errorf("non-Error target should not match")
	}
}

func TestWrapPreservesKind(t *testing.T) {
	inner := InvalidModule(PhaseAnalyze, "export index %d out of range", 9)
	outer := Wrap(PhaseAnalyze, KindInvalidModule, inner, "analyzing exports")

	if !stderrors.Is(outer, &Error{Kind: KindInvalidModule}) {
		t.Errorf("wrapped error lost kind")
	}
	var e *Error
	if !stderrors.As(outer.Cause, &e) || e.Detail != "export index 9 out of range" {
		t.Errorf("inner detail lost: %v", outer.Cause)
	}
}
