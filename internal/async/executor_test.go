package async

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSequentialExecutorDrainsInOrder(t *testing.T) {
	exec := NewSequentialExecutor()
	var order []int

	exec.Schedule(func() { order = append(order, 1) })
	exec.Schedule(func() {
		order = append(order, 2)
		// scheduling during a run must still be drained
		exec.Schedule(func() { order = append(order, 3) })
	})

	if exec.Idle() {
		t.Fatal("expected non-idle executor before Drain")
	}

	ran := exec.Drain()
	if ran != 3 {
		t.Fatalf("expected 3 closures run, got %d", ran)
	}
	for i, v := range []int{1, 2, 3} {
		if order[i] != v {
			t.Fatalf("expected order %v, got %v", []int{1, 2, 3}, order)
		}
	}
	if !exec.Idle() {
		t.Fatal("expected idle executor after Drain")
	}
}

func TestSequentialExecutorScheduleReturnsTask(t *testing.T) {
	exec := NewSequentialExecutor()
	task := Schedule(exec, func() (int, error) { return 7, nil })

	if task.Done() {
		t.Fatal("task should not run until Drain is called")
	}
	exec.Drain()
	val, err := task.Result()
	if err != nil || val != 7 {
		t.Fatalf("unexpected result: %d, %v", val, err)
	}
}

func TestThreadPoolExecutorRunsConcurrently(t *testing.T) {
	exec := NewThreadPoolExecutor(4)
	defer exec.Close()

	var counter atomic.Int64
	const n = 200
	tasks := make([]*Task[struct{}], n)
	for i := 0; i < n; i++ {
		tasks[i] = Schedule(exec, func() (struct{}, error) {
			counter.Add(1)
			return struct{}{}, nil
		})
	}

	deadline := time.Now().Add(2 * time.Second)
	for _, task := range tasks {
		for !task.Done() {
			if time.Now().After(deadline) {
				t.Fatal("timed out waiting for tasks to complete")
			}
			time.Sleep(time.Millisecond)
		}
	}

	if counter.Load() != n {
		t.Fatalf("expected %d increments, got %d", n, counter.Load())
	}
	if !exec.Idle() {
		t.Fatal("expected idle executor once all tasks complete")
	}
}

func TestThreadPoolExecutorCloseDropsResidual(t *testing.T) {
	exec := NewThreadPoolExecutor(1)

	started := make(chan struct{})
	block := make(chan struct{})
	exec.Schedule(func() {
		close(started)
		<-block
	})
	<-started // the sole worker is now occupied, so nothing below can have run yet

	const n = 200
	ran := make([]atomic.Bool, n)
	for i := range ran {
		r := &ran[i]
		exec.Schedule(func() { r.Store(true) })
	}

	closed := make(chan struct{})
	go func() {
		exec.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while its only worker was still blocked on the first task")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after its blocking task unblocked")
	}

	dropped := 0
	for i := range ran {
		if !ran[i].Load() {
			dropped++
		}
	}
	// With a single worker choosing between an already-closed stopCh and
	// a still-nonempty task channel on every loop iteration, draining
	// all n queued tasks before ever picking stopCh has probability
	// 2^-n: for n=200 this cannot happen in practice, so at least one
	// residual task is provably left dropped by Close.
	if dropped == 0 {
		t.Fatalf("expected Close to drop at least one of %d residual tasks, all ran", n)
	}
}
