package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecoverConvertsPanic(t *testing.T) {
	tests := []struct {
		name       string
		panicValue interface{}
		wantValue  string
	}{
		{"string panic", "index out of range", "index out of range"},
		{"int panic", 42, "42"},
		{"error panic", fmt.Errorf("singular matrix"), "singular matrix"},
		{"nil panic", nil, "panic called with nil argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit := func() (err error) {
				defer Recover(&err, "RandomForestClassifier.Fit")
				panic(tt.panicValue)
			}

			err := fit()
			if err == nil {
				t.Fatal("Expected error from recovered panic, got nil")
			}

			var panicErr *PanicError
			if !errors.As(err, &panicErr) {
				t.Fatalf("Expected PanicError, got %T", err)
			}
			if panicErr.Operation != "RandomForestClassifier.Fit" {
				t.Errorf("Operation = %q, want RandomForestClassifier.Fit", panicErr.Operation)
			}
			if fmt.Sprintf("%v", panicErr.PanicValue) != tt.wantValue {
				t.Errorf("PanicValue = %v, want %v", panicErr.PanicValue, tt.wantValue)
			}
			if panicErr.StackTrace == "" {
				t.Error("Expected non-empty stack trace")
			}
		})
	}
}

func TestRecoverWithoutPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "Trainer.Train")
		return nil
	}

	if err := fit(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecoverKeepsExistingError(t *testing.T) {
	original := fmt.Errorf("fit failed")

	fit := func() (err error) {
		defer Recover(&err, "Trainer.Train")
		err = original
		panic("panic after error")
	}

	err := fit()
	if err == nil {
		t.Fatal("Expected combined error, got nil")
	}
	if !strings.Contains(err.Error(), "panic in Trainer.Train") {
		t.Errorf("missing panic info: %v", err)
	}
	if !errors.Is(err, original) {
		t.Error("original error should survive the panic wrap")
	}
}

func TestSafeExecute(t *testing.T) {
	if err := SafeExecute("scale rows", func() error { return nil }); err != nil {
		t.Fatalf("Expected nil for successful run, got: %v", err)
	}

	cause := fmt.Errorf("bad input")
	if err := SafeExecute("scale rows", func() error { return cause }); err != cause {
		t.Fatalf("Expected the function's own error back, got: %v", err)
	}

	err := SafeExecute("command run_task", func() error { panic("handler blew up") })
	if err == nil {
		t.Fatal("Expected error from panic, got nil")
	}
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include the stack trace")
	}
}
