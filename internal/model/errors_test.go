package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("ClaimStored", "uri", "empty value")
	if got := err.Error(); got != "validate ClaimStored.uri: empty value" {
		t.Fatalf("unexpected message: %s", got)
	}

	err = &ValidationError{Event: "metadata", Reason: "not an object"}
	if got := err.Error(); got != "validate metadata: not an object" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestWrapStorageKeepsInnermostOp(t *testing.T) {
	if WrapStorage("noop", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}

	base := errors.New("connection reset")
	wrapped := WrapStorage("insert claims", base)
	again := WrapStorage("batch", wrapped)

	var se *StorageError
	if !errors.As(again, &se) {
		t.Fatalf("expected StorageError")
	}
	if se.Op != "insert claims" {
		t.Fatalf("op should not be rewrapped, got %s", se.Op)
	}
	if !errors.Is(again, base) || !IsStorageError(again) {
		t.Fatalf("wrapped error should unwrap to base")
	}
}

func TestDecodeErrorJSONOmitsEmptyStage(t *testing.T) {
	data, err := json.Marshal(DecodeError{ChainID: 10, Error: "bad line"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["stage"]; ok {
		t.Fatalf("stage should be omitted when empty")
	}
	if decoded["error"] != "bad line" {
		t.Fatalf("unexpected error field: %v", decoded["error"])
	}
}
