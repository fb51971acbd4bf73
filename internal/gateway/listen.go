//go:build linux

package gateway

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/gwerr"
	"github.com/wrknet/warpgate/internal/ioconn"
)

const (
	listenBacklog = 128

	// acceptPollInterval bounds how long Serve's accept-readiness wait
	// blocks before re-checking its stop channel, the same poll-with-
	// timeout shape internal/loop.Run uses for its own stop channel.
	acceptPollInterval = time.Second
)

// TLSContext is one entry of a listen address's SNI dispatch table.
// ServerName == "" marks the default context used for plain TLS
// without SNI, or as the fallback when a ClientHello's server name
// matches no configured context.
type TLSContext struct {
	ServerName string
	Config     *tls.Config
}

// ListenConfig describes one configured listen address, per spec
// §4.7–§4.11's listening rules: zero TLS contexts means plain TCP, one
// context with an empty server name means TLS without SNI, and any
// other set (one named context, or two or more) means TLS dispatched
// by SNI.
type ListenConfig struct {
	Network string // "tcp", "tcp4", or "tcp6"
	Address string // host:port
	TLS     []TLSContext
}

// Listener is one bound, listening socket plus the TLS dispatch table
// built from its ListenConfig.
type Listener struct {
	server    *Server
	fd        int
	local     net.Addr
	tlsConfig *tls.Config
}

// Listen binds and starts listening on cfg.Address, per spec §6's
// three listening cases.
func (s *Server) Listen(cfg ListenConfig) (*Listener, error) {
	network := cfg.Network
	if network == "" {
		network = "tcp"
	}

	fd, local, err := bindListen(network, cfg.Address)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Listener{server: s, fd: fd, local: local, tlsConfig: tlsConfig}, nil
}

// bindListen creates a non-blocking socket, binds it to address, and
// starts listening, grounded on the example corpus's own raw
// socket/bind/listen sequence generalized from a single hard-coded
// IPv4 socket to whatever family address resolves to.
func bindListen(network, address string) (int, net.Addr, error) {
	tcpAddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return -1, nil, gwerr.Wrap(gwerr.IO, "gateway.bindListen", err)
	}

	family := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, nil, gwerr.Wrap(gwerr.IO, "gateway.bindListen", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, nil, gwerr.Wrap(gwerr.IO, "gateway.bindListen", err)
	}

	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		addr := unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(addr.Addr[:], tcpAddr.IP.To16())
		sa = &addr
	} else {
		addr := unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 := tcpAddr.IP.To4(); ip4 != nil {
			copy(addr.Addr[:], ip4)
		}
		sa = &addr
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, nil, gwerr.Wrap(gwerr.IO, "gateway.bindListen", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, nil, gwerr.Wrap(gwerr.IO, "gateway.bindListen", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, nil, gwerr.Wrap(gwerr.IO, "gateway.bindListen", err)
	}

	return fd, tcpAddr, nil
}

// buildTLSConfig implements spec §6's three-way listening dispatch.
func buildTLSConfig(contexts []TLSContext) (*tls.Config, error) {
	switch len(contexts) {
	case 0:
		return nil, nil
	case 1:
		if contexts[0].ServerName == "" {
			return contexts[0].Config, nil
		}
	}

	byName := make(map[string]*tls.Config, len(contexts))
	var fallback *tls.Config
	for _, c := range contexts {
		name, err := filter.NormalizeServerName(c.ServerName)
		if err != nil {
			return nil, err
		}
		if name == "" {
			fallback = c.Config
			continue
		}
		byName[name] = c.Config
	}

	return &tls.Config{
		GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			name, err := filter.NormalizeServerName(hello.ServerName)
			if err != nil {
				return nil, err
			}
			if cfg, ok := byName[name]; ok {
				return cfg, nil
			}
			if fallback != nil {
				return fallback, nil
			}
			return nil, gwerr.New(gwerr.NotFound, "gateway.GetConfigForClient", "no TLS context matches server name")
		},
	}, nil
}

// Close stops accepting on the listener's socket.
func (l *Listener) Close() error {
	l.server.Loop.Forget(l.fd)
	return unix.Close(l.fd)
}

// Serve accepts connections until stop is closed, scheduling one
// handler task per accepted connection on the server's executor. It
// returns nil when stop closes, or an error if the accept-readiness
// wait itself fails for a reason other than its poll timeout.
func (l *Listener) Serve(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		task, err := l.server.Loop.WaitRead(l.fd, time.Now().Add(acceptPollInterval))
		if err != nil {
			return err
		}
		if _, err := task.Wait(context.Background()); err != nil {
			if gwerr.KindOf(err) == gwerr.Timeout {
				continue
			}
			return err
		}

		l.acceptReady(stop)
	}
}

// acceptReady drains every connection currently queued on the
// listening socket (epoll readiness is level-triggered here, but a
// single readiness notification can still represent more than one
// pending connection).
func (l *Listener) acceptReady(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			l.server.Logger.Warn("gateway: accept on %s: %v", l.local, err)
			return
		}

		remote := sockaddrToAddr(sa)
		conn := ioconn.New(l.server.Loop, nfd, l.local, remote)

		var netConn net.Conn = conn
		if l.tlsConfig != nil {
			netConn = tls.Server(conn, l.tlsConfig)
		}

		l.server.Executor.Schedule(func() {
			l.server.handleConnection(netConn)
		})
	}
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return nil
	}
}
