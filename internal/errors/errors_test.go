package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCapsuleError_Error(t *testing.T) {
	err := &CapsuleError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "capsule not found",
	}

	expected := "NOT_FOUND: capsule not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("id is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "id is required" {
		t.Errorf("Message = %q, want %q", err.Message, "id is required")
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation([]string{"friendName", "scheduledTime"})

	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	want := "please fill in all fields (missing: friendName, scheduledTime)"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
	missing, ok := err.Details["missing_fields"].([]string)
	if !ok || len(missing) != 2 {
		t.Errorf("Details[missing_fields] = %v, want 2 entries", err.Details["missing_fields"])
	}
}

func TestNewInvalidSchedule(t *testing.T) {
	err := NewInvalidSchedule("2025-13-01", "10:00", fmt.Errorf("month out of range"))

	if err.Code != ErrInvalidSchedule {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidSchedule)
	}
	if err.Details["scheduled_date"] != "2025-13-01" {
		t.Errorf("Details[scheduled_date] = %v", err.Details["scheduled_date"])
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01ABC")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01ABC" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01ABC")
	}
}

func TestNewNotDue(t *testing.T) {
	err := NewNotDue("01ABC")

	if err.Code != ErrNotDue {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotDue)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewMessageTooLarge(t *testing.T) {
	err := NewMessageTooLarge(100, 150)

	if err.Status != 413 {
		t.Errorf("Status = %d, want 413", err.Status)
	}
	if err.Details["max_chars"] != 100 || err.Details["actual_chars"] != 150 {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrConflict, false},
		{"wrapped", fmt.Errorf("ctx: %w", NewNotDue("x")), ErrNotDue, true},
		{"plain error", stderrors.New("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Is(tc.err, tc.code); got != tc.want {
				t.Errorf("Is() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	orig := NewConflict("already running")
	if got := As(orig); got != orig {
		t.Errorf("As() should return the same *CapsuleError")
	}

	got := As(stderrors.New("boom"))
	if got.Code != ErrInternal {
		t.Errorf("As(plain).Code = %q, want %q", got.Code, ErrInternal)
	}
}
