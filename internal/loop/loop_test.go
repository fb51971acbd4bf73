//go:build linux

package loop

import (
	"context"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wrknet/warpgate/internal/gwerr"
)

func TestWaitReadTimeout(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer w.Close()
	defer r.Close()

	if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}

	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	go l.Run(make(chan struct{}))

	start := time.Now()
	task, err := l.WaitRead(int(r.Fd()), start.Add(50*time.Millisecond))
	if err != nil {
		t.Fatalf("WaitRead: %v", err)
	}

	_, waitErr := task.Wait(context.Background())
	elapsed := time.Since(start)

	if gwerr.KindOf(waitErr) != gwerr.Timeout {
		t.Fatalf("expected Timeout kind, got %v", waitErr)
	}
	if elapsed < 50*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Fatalf("expected timeout within 50-200ms, took %v", elapsed)
	}

	l.mu.Lock()
	_, stillRegistered := l.readWaiters[int(r.Fd())]
	l.mu.Unlock()
	if stillRegistered {
		t.Fatal("expected waiter to be removed after timeout")
	}
}

func TestWaitReadReadiness(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer w.Close()
	defer r.Close()
	unix.SetNonblock(int(r.Fd()), true)

	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	go l.Run(make(chan struct{}))

	task, err := l.WaitRead(int(r.Fd()), time.Time{})
	if err != nil {
		t.Fatalf("WaitRead: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte("x"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := task.Wait(ctx); err != nil {
		t.Fatalf("expected readiness, got error: %v", err)
	}
}

func TestDoubleRegistrationRejected(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer w.Close()
	defer r.Close()
	unix.SetNonblock(int(r.Fd()), true)

	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	if _, err := l.WaitRead(int(r.Fd()), time.Time{}); err != nil {
		t.Fatalf("first WaitRead: %v", err)
	}
	_, err = l.WaitRead(int(r.Fd()), time.Time{})
	if gwerr.KindOf(err) != gwerr.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
