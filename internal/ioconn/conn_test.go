//go:build linux

package ioconn

import (
	"io"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wrknet/warpgate/internal/loop"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	return fds[0], fds[1]
}

func TestConnReadWriteRoundTrip(t *testing.T) {
	a, b := socketPair(t)

	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()
	go l.Run(make(chan struct{}))

	connA := New(l, a, nil, nil)
	connB := New(l, b, nil, nil)
	defer connA.Close()
	defer connB.Close()

	msg := []byte("hello over the loop")
	go func() {
		if _, err := connA.Write(msg); err != nil {
			t.Errorf("write: %v", err)
		}
	}()

	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(connB, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != string(msg) {
		t.Fatalf("expected %q, got %q", msg, buf)
	}
}

func TestConnReadEOFOnClose(t *testing.T) {
	a, b := socketPair(t)

	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()
	go l.Run(make(chan struct{}))

	connA := New(l, a, nil, nil)
	connB := New(l, b, nil, nil)
	defer connB.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		connA.Close()
	}()

	buf := make([]byte, 16)
	_, err = connB.Read(buf)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
