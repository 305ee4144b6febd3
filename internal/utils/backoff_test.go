package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBackoff() Backoff {
	return Backoff{
		Initial:      time.Millisecond,
		Max:          4 * time.Millisecond,
		Total:        200 * time.Millisecond,
		PerAttempt:   10 * time.Millisecond,
		AttemptLabel: "test",
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	hooks := 0
	attempts, err := Retry(context.Background(), testBackoff(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("down")
		}
		return nil
	}, func(int, time.Duration, time.Duration, error) { hooks++ })

	if err != nil {
		t.Fatalf("Retry() unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Retry() attempts = %d, want 3", attempts)
	}
	if hooks != 2 {
		t.Errorf("retry hook called %d times, want 2", hooks)
	}
}

func TestRetryGivesUpAtDeadline(t *testing.T) {
	b := testBackoff()
	b.Total = 20 * time.Millisecond
	sentinel := errors.New("still down")

	_, err := Retry(context.Background(), b, func(ctx context.Context) error {
		return sentinel
	}, nil)

	if !errors.Is(err, sentinel) {
		t.Fatalf("Retry() error = %v, want wrapped %v", err, sentinel)
	}
}

func TestBackoffValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Backoff)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Backoff) {}},
		{name: "zero total", mutate: func(b *Backoff) { b.Total = 0 }, wantErr: true},
		{name: "zero initial", mutate: func(b *Backoff) { b.Initial = 0 }, wantErr: true},
		{name: "zero max", mutate: func(b *Backoff) { b.Max = 0 }, wantErr: true},
		{name: "zero attempt timeout", mutate: func(b *Backoff) { b.PerAttempt = 0 }, wantErr: true},
		{name: "negative warn", mutate: func(b *Backoff) { b.WarnAfter = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBackoff()
			tt.mutate(&b)
			if err := b.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
