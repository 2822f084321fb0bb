package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeAndCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeUpstreamFailure, cause, "Network error")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through errors.Is")
	}
	if !stdErrors.Is(err, New(CodeUpstreamFailure, "")) {
		t.Fatalf("expected code based comparison to match")
	}
	if CodeOf(err) != CodeUpstreamFailure {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
	if !RetryableError(err) {
		t.Fatalf("upstream failures should be retryable by default")
	}
	if got := UserMessage(err); got != "Network error: connection refused" {
		t.Fatalf("unexpected user message: %q", got)
	}
}

func TestDefaultsAndMetadata(t *testing.T) {
	err := Wrap(CodeTimeout, stdErrors.New("deadline exceeded"), "", WithMetadata("signature", "sig-1"), WithRetryable(false))

	if err.Message() != "operation timed out: deadline exceeded" {
		t.Fatalf("expected default message, got %q", err.Message())
	}
	if SeverityOf(err) != SeverityWarning {
		t.Fatalf("unexpected severity: %s", SeverityOf(err))
	}
	if RetryableError(err) {
		t.Fatalf("explicit retryable override should win")
	}
	if got := MetadataValue(fmt.Errorf("outer: %w", err), "signature"); got != "sig-1" {
		t.Fatalf("metadata should survive wrapping, got %q", got)
	}
	if MetadataValue(stdErrors.New("plain"), "signature") != "" {
		t.Fatalf("plain errors carry no metadata")
	}
	if CodeOf(stdErrors.New("plain")) != CodeUnknown || SeverityOf(stdErrors.New("plain")) != SeverityCritical {
		t.Fatalf("plain errors should map to UNKNOWN")
	}
	if New(Code("UNREGISTERED"), "").Message() != "unknown error" {
		t.Fatalf("unregistered codes should fall back to UNKNOWN defaults")
	}
}
