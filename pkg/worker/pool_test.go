package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPool_RunsAllTasks(t *testing.T) {
	var done int64

	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(_ context.Context) error {
			atomic.AddInt64(&done, 1)
			return nil
		}
	}

	if err := NewPool(4).Run(context.Background(), tasks); err != nil {
		t.Fatalf("Failed to run tasks: %v", err)
	}
	if done != 20 {
		t.Errorf("Expected 20 tasks executed, got %d", done)
	}
}

func TestPool_RespectsLimit(t *testing.T) {
	var mu sync.Mutex
	var active, peak int

	tasks := make([]Task, 30)
	for i := range tasks {
		tasks[i] = func(_ context.Context) error {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
			return nil
		}
	}

	if err := NewPool(3).Run(context.Background(), tasks); err != nil {
		t.Fatalf("Failed to run tasks: %v", err)
	}
	if peak > 3 {
		t.Errorf("Observed %d concurrent tasks, limit was 3", peak)
	}
}

func TestPool_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")

	tasks := []Task{
		func(_ context.Context) error { return nil },
		func(_ context.Context) error { return boom },
		func(_ context.Context) error { return nil },
	}

	if err := NewPool(1).Run(context.Background(), tasks); !errors.Is(err, boom) {
		t.Errorf("Expected the task error, got %v", err)
	}
}

func TestPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int64
	tasks := []Task{
		func(_ context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		},
	}

	if err := NewPool(1).Run(ctx, tasks); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if ran != 0 {
		t.Error("Tasks should not start on a cancelled context")
	}
}

func TestPool_EmptyBatch(t *testing.T) {
	if err := NewPool(2).Run(context.Background(), nil); err != nil {
		t.Errorf("Empty batch should succeed, got %v", err)
	}
}
