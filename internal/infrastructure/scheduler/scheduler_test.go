package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_RunsJobs(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(zap.NewNop())

	var runs int32
	if err := s.Every("count", time.Second, func() { atomic.AddInt32(&runs, 1) }); err != nil {
		t.Fatalf("Every() error = %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if atomic.LoadInt32(&runs) == 0 {
		t.Error("job never ran")
	}
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(nil)
	if err := s.Add("broken", "every now and then", func() {}); err == nil {
		t.Error("Add() should reject an invalid spec")
	}
}

func TestScheduler_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := New(zap.New(core))

	done := make(chan struct{}, 1)
	if err := s.Every("panics", time.Second, func() {
		defer func() { done <- struct{}{} }()
		panic("boom")
	}); err != nil {
		t.Fatalf("Every() error = %v", err)
	}

	s.Start()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.Stop(ctx)

	if logs.Len() == 0 {
		t.Error("panic should be logged")
	}
}
