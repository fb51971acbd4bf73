//go:build linux

// Package loop implements the epoll-based event loop described in
// spec §4.1: fd/direction waiters with optional deadlines, resolved
// on epoll readiness or expired on their deadline by completing the
// waiter's async.Task directly; the loop holds no executor, and
// whichever goroutine waits on that Task resumes itself.
package loop

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/gwerr"
)

var errFdClosed = errors.New("loop is closed")

// Direction is the readiness direction a waiter is registered for.
type Direction int

const (
	Read Direction = iota
	Write
)

type waiter struct {
	task     *async.Task[struct{}]
	deadline time.Time // zero value means no deadline
}

// Loop is a single epoll instance plus the waiter maps registered
// against it. A Loop is driven by exactly one goroutine calling Run
// (or repeated Poll calls); waiters may be registered from any
// goroutine.
type Loop struct {
	epfd int
	wfd  int // eventfd used to interrupt a blocked EpollWait

	mu           sync.Mutex
	readWaiters  map[int]*waiter
	writeWaiters map[int]*waiter

	events []unix.EpollEvent
	closed bool
}

// New creates a Loop backed by a fresh epoll instance.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.IO, "loop.New", err)
	}

	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, gwerr.Wrap(gwerr.IO, "loop.New", err)
	}

	l := &Loop{
		epfd:         epfd,
		wfd:          wfd,
		readWaiters:  make(map[int]*waiter),
		writeWaiters: make(map[int]*waiter),
		events:       make([]unix.EpollEvent, 256),
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wfd),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(wfd)
		return nil, gwerr.Wrap(gwerr.IO, "loop.New", err)
	}

	return l, nil
}

// Close releases the epoll and eventfd descriptors. Any waiters still
// registered are left untouched — callers are expected to have torn
// down their connections first.
func (l *Loop) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	unix.Close(l.wfd)
	return unix.Close(l.epfd)
}

func (l *Loop) waiterMap(dir Direction) map[int]*waiter {
	if dir == Read {
		return l.readWaiters
	}
	return l.writeWaiters
}

func (l *Loop) eventMask(fd int) uint32 {
	var mask uint32
	if _, ok := l.readWaiters[fd]; ok {
		mask |= unix.EPOLLIN
	}
	if _, ok := l.writeWaiters[fd]; ok {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Wait registers a waiter for fd becoming ready in dir. deadline, if
// non-zero, causes the returned task to complete with a Timeout error
// if the fd has not become ready by then. Registering a second waiter
// for the same (fd, dir) pair before the first resolves is a
// precondition violation, per spec §4.1.
func (l *Loop) Wait(fd int, dir Direction, deadline time.Time) (*async.Task[struct{}], error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, gwerr.Wrap(gwerr.IO, "loop.Wait", errFdClosed)
	}

	waiters := l.waiterMap(dir)
	if _, exists := waiters[fd]; exists {
		l.mu.Unlock()
		return nil, gwerr.ErrInvalidArgument
	}

	_, hadAny := l.readWaiters[fd]
	_, hadOther := l.writeWaiters[fd]
	existed := hadAny || hadOther

	task := async.NewTask[struct{}]()
	waiters[fd] = &waiter{task: task, deadline: deadline}

	mask := l.eventMask(fd)
	var ctlErr error
	if existed {
		ctlErr = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: mask, Fd: int32(fd)})
	} else {
		ctlErr = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: mask, Fd: int32(fd)})
	}
	if ctlErr != nil {
		delete(waiters, fd)
		l.mu.Unlock()
		return nil, gwerr.Wrap(gwerr.IO, "loop.Wait", ctlErr)
	}
	l.mu.Unlock()

	l.wake()
	return task, nil
}

// WaitRead is Wait(fd, Read, deadline).
func (l *Loop) WaitRead(fd int, deadline time.Time) (*async.Task[struct{}], error) {
	return l.Wait(fd, Read, deadline)
}

// WaitWrite is Wait(fd, Write, deadline).
func (l *Loop) WaitWrite(fd int, deadline time.Time) (*async.Task[struct{}], error) {
	return l.Wait(fd, Write, deadline)
}

// Forget removes any registered waiters for fd without resolving
// them, and removes fd from the epoll set. Callers must do this
// before closing fd.
func (l *Loop) Forget(fd int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, hadRead := l.readWaiters[fd]
	_, hadWrite := l.writeWaiters[fd]
	delete(l.readWaiters, fd)
	delete(l.writeWaiters, fd)

	if hadRead || hadWrite {
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
}

// wake interrupts a goroutine currently blocked in EpollWait so it can
// recompute the next deadline, e.g. after a new, possibly-sooner,
// deadline was just registered.
func (l *Loop) wake() {
	buf := [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	unix.Write(l.wfd, buf[:])
}

func (l *Loop) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(l.wfd, buf[:])
		if err != nil {
			return
		}
	}
}

// nextDeadline returns the earliest deadline across all registered
// waiters, and whether any deadline exists at all.
func (l *Loop) nextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, w := range l.readWaiters {
		if w.deadline.IsZero() {
			continue
		}
		if !found || w.deadline.Before(next) {
			next = w.deadline
			found = true
		}
	}
	for _, w := range l.writeWaiters {
		if w.deadline.IsZero() {
			continue
		}
		if !found || w.deadline.Before(next) {
			next = w.deadline
			found = true
		}
	}
	return next, found
}

// expireDeadlines completes, with a Timeout error, any waiter whose
// deadline has passed, and removes it from the epoll set if it was
// the last waiter on that fd.
func (l *Loop) expireDeadlines(now time.Time) {
	l.expireIn(l.readWaiters, now)
	l.expireIn(l.writeWaiters, now)
}

func (l *Loop) expireIn(waiters map[int]*waiter, now time.Time) {
	for fd, w := range waiters {
		if w.deadline.IsZero() || w.deadline.After(now) {
			continue
		}
		delete(waiters, fd)
		l.updateOrRemove(fd)
		w.task.Complete(struct{}{}, gwerr.ErrTimeout)
	}
}

// updateOrRemove recomputes fd's epoll registration after one of its
// direction waiters has been removed.
func (l *Loop) updateOrRemove(fd int) {
	_, hasRead := l.readWaiters[fd]
	_, hasWrite := l.writeWaiters[fd]
	if !hasRead && !hasWrite {
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		return
	}
	mask := l.eventMask(fd)
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: mask, Fd: int32(fd)})
}

// Poll performs one iteration: expire elapsed deadlines, compute the
// wait timeout from the earliest remaining deadline, block in
// EpollWait, and resolve every ready waiter by completing its task
// with success. It returns the number of waiters resolved by
// readiness; waiters expired on their deadline are not counted.
func (l *Loop) Poll() (int, error) {
	l.mu.Lock()
	now := time.Now()
	l.expireDeadlines(now)
	deadline, hasDeadline := l.nextDeadline()

	timeoutMs := -1
	if hasDeadline {
		d := deadline.Sub(now)
		if d < 0 {
			d = 0
		}
		timeoutMs = int(d.Milliseconds())
	}
	l.mu.Unlock()

	n, err := unix.EpollWait(l.epfd, l.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, gwerr.Wrap(gwerr.IO, "loop.Poll", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	resolved := 0
	for i := 0; i < n; i++ {
		ev := l.events[i]
		fd := int(ev.Fd)
		if fd == l.wfd {
			l.drainWake()
			continue
		}

		readReady := ev.Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0
		writeReady := ev.Events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0

		if readReady {
			if w, ok := l.readWaiters[fd]; ok {
				delete(l.readWaiters, fd)
				l.updateOrRemove(fd)
				w.task.Complete(struct{}{}, nil)
				resolved++
			}
		}
		if writeReady {
			if w, ok := l.writeWaiters[fd]; ok {
				delete(l.writeWaiters, fd)
				l.updateOrRemove(fd)
				w.task.Complete(struct{}{}, nil)
				resolved++
			}
		}
	}

	// Re-check deadlines: a Poll call that returned only due to
	// timeoutMs elapsing (n == 0) still needs its expired waiters
	// resolved on the next call, but resolving eagerly here keeps
	// timeout latency tight.
	l.expireDeadlines(time.Now())

	return resolved, nil
}

// Run repeatedly calls Poll until stop is closed.
func (l *Loop) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		if _, err := l.Poll(); err != nil {
			return err
		}
	}
}
