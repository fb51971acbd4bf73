//go:build linux

// Package ioconn adapts a raw, non-blocking file descriptor into a
// net.Conn whose Read/Write calls suspend on the loop's fd waiters
// instead of the Go runtime's own netpoller. This is what lets
// crypto/tls — the external "TLS-wrapped byte stream with SNI hook"
// collaborator named in spec §1 — be layered directly on top of the
// gateway's own epoll substrate.
package ioconn

import (
	"context"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wrknet/warpgate/internal/gwerr"
	"github.com/wrknet/warpgate/internal/loop"
)

// Conn is a net.Conn backed by a raw fd registered with a loop.Loop.
type Conn struct {
	fd     int
	l      *loop.Loop
	local  net.Addr
	remote net.Addr

	readDeadline  time.Time
	writeDeadline time.Time
}

// New wraps fd, which must already be set non-blocking, as a Conn
// driven by l.
func New(l *loop.Loop, fd int, local, remote net.Addr) *Conn {
	return &Conn{fd: fd, l: l, local: local, remote: remote}
}

// FD returns the underlying file descriptor. Callers must not close
// it directly; use Close.
func (c *Conn) FD() int { return c.fd }

func (c *Conn) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, b)
		if err == nil {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		if err != unix.EAGAIN {
			return 0, gwerr.Wrap(gwerr.IO, "ioconn.Read", err)
		}
		if err := c.suspend(loop.Read, c.readDeadline); err != nil {
			return 0, err
		}
	}
}

func (c *Conn) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := unix.Write(c.fd, b[written:])
		if err == nil {
			written += n
			continue
		}
		if err != unix.EAGAIN {
			return written, gwerr.Wrap(gwerr.IO, "ioconn.Write", err)
		}
		if err := c.suspend(loop.Write, c.writeDeadline); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (c *Conn) suspend(dir loop.Direction, deadline time.Time) error {
	task, err := c.l.Wait(c.fd, dir, deadline)
	if err != nil {
		return err
	}
	_, err = task.Wait(context.Background())
	return err
}

// CloseWrite half-closes the write side of the socket (shutdown with
// SHUT_WR); reads remain possible.
func (c *Conn) CloseWrite() error {
	return unix.Shutdown(c.fd, unix.SHUT_WR)
}

// Close removes fd from the loop and closes it.
func (c *Conn) Close() error {
	c.l.Forget(c.fd)
	return unix.Close(c.fd)
}

func (c *Conn) LocalAddr() net.Addr  { return c.local }
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

func (c *Conn) SetDeadline(t time.Time) error {
	c.readDeadline = t
	c.writeDeadline = t
	return nil
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.readDeadline = t
	return nil
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline = t
	return nil
}
