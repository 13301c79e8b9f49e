package errors

import (
	stdErrors "errors"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test")
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestWithMessageCopies(t *testing.T) {
	with := ErrInvalidArgument.WithMessage("prefix must not be empty")

	if with == ErrInvalidArgument {
		t.Fatal("expected WithMessage to return a copy")
	}

	if with.Message != "prefix must not be empty" {
		t.Fatalf("unexpected message: %s", with.Message)
	}

	if !stdErrors.Is(with, ErrInvalidArgument) {
		t.Fatal("expected copy to still match its sentinel")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := ErrNotFound.WithInternal(stdErrors.New("record not found"))

	if !stdErrors.Is(wrapped, ErrNotFound) {
		t.Fatal("expected wrapped error to match sentinel by code")
	}

	if stdErrors.Is(wrapped, ErrKeyExists) {
		t.Fatal("expected codes to be distinguished")
	}
}

func TestFromError(t *testing.T) {
	storeErr := ErrNotFound
	if out := FromError(storeErr); out != storeErr {
		t.Fatal("expected FromError to return the same StoreError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrStorage.Code {
		t.Fatalf("expected storage failure code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewInvalidArgument(t *testing.T) {
	err := NewInvalidArgument("key must not be empty")
	if err.Code != ErrInvalidArgument.Code {
		t.Fatalf("expected %s, got %s", ErrInvalidArgument.Code, err.Code)
	}
	if err.Message != "key must not be empty" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
}
