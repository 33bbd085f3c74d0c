package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeAndCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeStorageFailure, cause, "")

	if err.Message() != "storage failure" {
		t.Fatalf("expected default message, got %q", err.Message())
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if !stdErrors.Is(fmt.Errorf("outer: %w", err), New(CodeStorageFailure, "other")) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if CodeOf(fmt.Errorf("outer: %w", err)) != CodeStorageFailure {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
}

func TestRetryableDefaultsAndOverrides(t *testing.T) {
	if !RetryableError(New(CodeTimeout, "")) {
		t.Fatalf("timeout should be retryable by default")
	}
	if RetryableError(New(CodeTimeout, "", WithRetryable(false))) {
		t.Fatalf("override should disable retry")
	}
	if RetryableError(stdErrors.New("plain")) {
		t.Fatalf("plain errors are never retryable")
	}
}

func TestRegisterCustomCode(t *testing.T) {
	const code Code = "TEST_CUSTOM"
	Register(code, Attributes{Message: "custom", Severity: SeverityWarning, Retryable: true})

	err := New(code, "")
	if err.Message() != "custom" || err.Severity() != SeverityWarning || !err.Retryable() {
		t.Fatalf("unexpected attributes: %q %s %v", err.Message(), err.Severity(), err.Retryable())
	}
	if AttributesOf("MISSING").Message != "unknown error" {
		t.Fatalf("unregistered codes should fall back to UNKNOWN")
	}
}

func TestMetadataIsCopied(t *testing.T) {
	err := New(CodeInvalidArgument, "bad", WithMetadata("field", "topic"))
	md := err.Metadata()
	md["field"] = "changed"
	if err.Metadata()["field"] != "topic" {
		t.Fatalf("metadata should be returned as a copy")
	}
}
