package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  &ValidationError{Field: "question", Message: "cannot be empty"},
			want: "invalid question: cannot be empty",
		},
		{
			name: "missing source",
			err:  &NotFoundError{Collection: "physics", Kind: "source", ID: "notes.pdf"},
			want: "source notes.pdf not found in collection physics",
		},
		{
			name: "wrapped",
			err:  WrapError(errors.New("disk full"), "failed to record feedback"),
			want: "failed to record feedback: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapError_Nil(t *testing.T) {
	if err := WrapError(nil, "context"); err != nil {
		t.Errorf("WrapError(nil) = %v, want nil", err)
	}
}

func TestErrorMatching(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantInvalid  bool
		wantNotFound bool
	}{
		{name: "validation", err: &ValidationError{Field: "backend", Message: "unknown"}, wantInvalid: true},
		{name: "wrapped validation", err: WrapError(&ValidationError{Field: "overlap"}, "ingest"), wantInvalid: true},
		{name: "not found", err: &NotFoundError{Kind: "chunk", ID: "x"}, wantNotFound: true},
		{name: "wrapped not found", err: fmt.Errorf("summarize: %w", &NotFoundError{Kind: "source"}), wantNotFound: true},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, ErrInvalidInput); got != tt.wantInvalid {
				t.Errorf("errors.Is(ErrInvalidInput) = %v, want %v", got, tt.wantInvalid)
			}
			if got := errors.Is(tt.err, ErrNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(ErrNotFound) = %v, want %v", got, tt.wantNotFound)
			}
		})
	}

	var ve *ValidationError
	if !errors.As(WrapError(&ValidationError{Field: "question"}, "ask"), &ve) || ve.Field != "question" {
		t.Errorf("errors.As() = %v, want field question", ve)
	}
}
