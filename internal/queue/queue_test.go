package queue

import (
	"context"
	"testing"
	"time"

	"github.com/your-org/ubnad/internal/model"
)

func TestPushPopFIFO(t *testing.T) {
	q := New(10)

	for i := 0; i < 3; i++ {
		ev := model.ConnEvent{Pid: int32(i)}
		if !q.Push(ev, time.Second) {
			t.Fatalf("push %d failed on non-full queue", i)
		}
	}

	for i := 0; i < 3; i++ {
		ev, ok := q.Pop(context.Background(), time.Second)
		if !ok {
			t.Fatalf("pop %d timed out", i)
		}
		if ev.Pid != int32(i) {
			t.Fatalf("expected pid %d, got %d", i, ev.Pid)
		}
	}
}

func TestPushFullQueueDropsAfterTimeout(t *testing.T) {
	q := New(1)
	if !q.Push(model.ConnEvent{Pid: 1}, time.Second) {
		t.Fatalf("first push failed")
	}

	start := time.Now()
	ok := q.Push(model.ConnEvent{Pid: 2}, 50*time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatalf("push into full queue should report a drop")
	}
	if elapsed < 50*time.Millisecond {
		t.Fatalf("push returned before the timeout: %s", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("push blocked far past the timeout: %s", elapsed)
	}
}

func TestPopTimesOutOnEmptyQueue(t *testing.T) {
	q := New(1)

	_, ok := q.Pop(context.Background(), 50*time.Millisecond)
	if ok {
		t.Fatalf("pop on empty queue should time out")
	}
}

func TestPopReturnsOnCancelledContext(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, ok := q.Pop(ctx, 10*time.Second)
	if ok {
		t.Fatalf("pop should fail on cancelled context")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("pop did not return promptly on cancellation")
	}
}
