package crm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "email", Reason: "must not be empty"}
	if !strings.Contains(err.Error(), "email") {
		t.Fatalf("message should name the field: %q", err.Error())
	}

	bare := &ValidationError{Reason: "unknown filter"}
	if strings.Contains(bare.Error(), ": :") {
		t.Fatalf("field-less message should omit the field separator: %q", bare.Error())
	}
}

func TestIsValidation(t *testing.T) {
	err := fmt.Errorf("create student: %w", &ValidationError{Field: "name", Reason: "required"})
	if !IsValidation(err) {
		t.Fatal("wrapped ValidationError should be detected")
	}
	if IsValidation(errors.New("boom")) {
		t.Fatal("plain error should not be a validation error")
	}
}

func TestIsNotFound(t *testing.T) {
	err := fmt.Errorf("get: %w", &NotFoundError{Kind: "student", ID: "stu_001"})
	if !IsNotFound(err) {
		t.Fatal("wrapped NotFoundError should be detected")
	}
	if !strings.Contains(err.Error(), "stu_001") {
		t.Fatalf("message should name the id: %q", err.Error())
	}
	if IsNotFound(&ValidationError{Reason: "x"}) {
		t.Fatal("validation error should not be a not-found error")
	}
}

func TestIsQueryConfiguration(t *testing.T) {
	err := &QueryConfigurationError{Reason: "range predicates on two fields"}
	if !IsQueryConfiguration(fmt.Errorf("list: %w", err)) {
		t.Fatal("wrapped QueryConfigurationError should be detected")
	}
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StoreError{Op: "query", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("store error should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "query") {
		t.Fatalf("message should name the operation: %q", err.Error())
	}
}

func TestPartialAggregateErrorUnwrap(t *testing.T) {
	cause := &StoreError{Op: "count", Err: errors.New("timeout")}
	err := &PartialAggregateError{Query: "highIntent", Err: cause}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatal("aggregate error should unwrap to the store failure")
	}
	if !strings.Contains(err.Error(), "highIntent") {
		t.Fatalf("message should name the failed query: %q", err.Error())
	}
}
