package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestStorageErrorKeepsDomainErrors(t *testing.T) {
	if err := StorageError("get", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	wrapped := fmt.Errorf("repo: %w", ErrLastLeader)
	if got := StorageError("end membership", wrapped); got != wrapped {
		t.Fatalf("expected domain error to pass through, got %v", got)
	}

	cause := errors.New("connection reset")
	err := StorageError("end membership", cause)
	if !IsDomainError(err, ErrCodeStorage) {
		t.Fatalf("expected STORAGE, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected storage error to unwrap to its cause")
	}
	if IsDomainError(err, ErrCodeLastLeader) {
		t.Fatal("storage failures must not look like invariant violations")
	}
}

func TestSentinelCodes(t *testing.T) {
	tests := map[ErrorCode]error{
		ErrCodeLastLeader:           ErrLastLeader,
		ErrCodeCannotRemoveSelf:     ErrCannotRemoveSelf,
		ErrCodeNoLeader:             ErrNoLeader,
		ErrCodeInvalidQualification: ErrInvalidQualification,
		ErrCodeNotFound:             ErrMembershipNotFound,
	}
	for code, err := range tests {
		if !IsDomainError(err, code) {
			t.Fatalf("expected %s for %v", code, err)
		}
	}
}
