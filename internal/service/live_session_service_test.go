package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLiveSessionServiceOneSessionPerStudentAndTest(t *testing.T) {
	svc := NewLiveSessionService(nil, time.Hour)
	ctx := context.Background()

	claim, err := svc.Acquire(ctx, "s1", "t1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := svc.Acquire(ctx, "s1", "t1"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Acquire err = %v, want ErrSessionActive", err)
	}

	other, err := svc.Acquire(ctx, "s1", "t2")
	if err != nil {
		t.Fatalf("other test: %v", err)
	}
	defer other.Release()
	if svc.Active() != 2 {
		t.Fatalf("Active = %d, want 2", svc.Active())
	}

	if err := claim.Refresh(ctx); err != nil {
		t.Fatalf("Refresh without Redis: %v", err)
	}
	claim.Release()
	claim.Release()
	again, err := svc.Acquire(ctx, "s1", "t1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again.Release()
}
