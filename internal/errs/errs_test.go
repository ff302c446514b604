package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Wrap(InputIO, "a.png", errors.New("boom"))
	wrapped := fmt.Errorf("processing: %w", err)

	if !errors.Is(wrapped, ErrInputIO) {
		t.Error("expected wrapped error to match ErrInputIO")
	}
	if errors.Is(wrapped, ErrOutputWrite) {
		t.Error("did not expect match with ErrOutputWrite")
	}
	if KindOf(wrapped) != InputIO {
		t.Errorf("KindOf = %v, want %v", KindOf(wrapped), InputIO)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(InputIO, "x", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestForBlob(t *testing.T) {
	base := New(Rectification, "sheet.png", "hull has %d points", 2)
	err := ForBlob(base, 3)

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected *Error")
	}
	if e.Blob != 3 || e.Kind != Rectification || e.Path != "sheet.png" {
		t.Errorf("unexpected error fields: %+v", e)
	}
	if base.Blob != 0 {
		t.Error("ForBlob must not mutate its argument")
	}
	want := "rectification sheet.png blob 3: hull has 2 points"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	plain := ForBlob(errors.New("x"), 1)
	if !errors.Is(plain, ErrRectification) {
		t.Error("plain errors should default to rectification kind")
	}

	inner := Wrap(OutputWrite, "out.png", errors.New("disk full"))
	ctx := ForBlob(fmt.Errorf("saving crop: %w", inner), 2)
	if !errors.Is(ctx, ErrOutputWrite) {
		t.Errorf("kind lost: %v", ctx)
	}
	if !strings.Contains(ctx.Error(), "saving crop") || !strings.Contains(ctx.Error(), "blob 2") {
		t.Errorf("context dropped: %q", ctx.Error())
	}
}

func TestIsWarning(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(NoBlobsFound, "a", "none"), true},
		{New(SegmentationDegenerate, "a", "none"), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsWarning(tt.err); got != tt.want {
			t.Errorf("IsWarning(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWithPath(t *testing.T) {
	err := WithPath(New(SegmentationDegenerate, "", "no background"), "a.png")
	if err.Error() != "segmentation degenerate a.png: no background" {
		t.Errorf("Error() = %q", err.Error())
	}
	kept := WithPath(New(InputIO, "b.png", "x"), "a.png")
	var e *Error
	if !errors.As(kept, &e) || e.Path != "b.png" {
		t.Error("existing path must be kept")
	}
	plain := errors.New("plain")
	if WithPath(plain, "a.png") != plain {
		t.Error("non *Error values pass through")
	}
	wrapped := fmt.Errorf("page 2: %w", New(InputIO, "", "x"))
	if WithPath(wrapped, "a.png") != wrapped {
		t.Error("wrapped errors keep their context")
	}
}
