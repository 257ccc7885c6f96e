package models

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestErrorCode_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"validation", NewValidationError("qty", "must be positive"), ErrCodeValidation},
		{"not found", ErrNotFound, ErrCodeNotFound},
		{"already posted", ErrAlreadyPosted, ErrCodeAlreadyPosted},
		{"already reversed", ErrAlreadyReversed, ErrCodeAlreadyReversed},
		{"duplicate code", ErrDuplicateCode, ErrCodeDuplicateCode},
		{"conflict", ErrConflict, ErrCodeConflict},
		{"wrapped conflict", fmt.Errorf("%w: Error 1213: Deadlock found", ErrConflict), ErrCodeConflict},
		{"unclassified", errors.New("boom"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ErrorCode(tc.err); got != tc.want {
				t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

// A raw driver serialization error must never leak to clients unclassified:
// the activation path retries once, then wraps it in ErrConflict.
func TestSerializationErrWrapsToConflict(t *testing.T) {
	raw := &mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	if !isSerializationErr(raw) {
		t.Fatalf("1213 must classify as a serialization error")
	}
	if !isSerializationErr(&mysqlDriver.MySQLError{Number: 1205}) {
		t.Fatalf("1205 must classify as a serialization error")
	}
	if isSerializationErr(errors.New("boom")) {
		t.Fatalf("arbitrary errors are not serialization errors")
	}

	if got := ErrorCode(raw); got != "" {
		t.Fatalf("raw driver error classified as %q, want unclassified", got)
	}
	wrapped := fmt.Errorf("%w: %s", ErrConflict, raw.Error())
	if got := ErrorCode(wrapped); got != ErrCodeConflict {
		t.Fatalf("wrapped serialization error = %q, want %q", got, ErrCodeConflict)
	}
	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("wrapped error must satisfy errors.Is(ErrConflict)")
	}
}
