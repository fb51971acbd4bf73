// Package gateway wires the event loop, executor, filter tree, and
// handlers into the listening servers described in spec §2/§6: one
// listener per configured address, each accepted connection driven
// through parse/match/dispatch exactly once (no keep-alive loop, per
// spec §2's "may be added trivially by looping" note).
package gateway

import (
	"sync"

	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/loop"
	"github.com/wrknet/warpgate/internal/logging"
)

// Server holds the long-lived services a listener's accepted
// connections borrow: the event loop, the executor backend I/O tasks
// run on, the filter tree root, the logger, and the parser limits.
// Per spec §9's design note, these are process-lifetime services the
// listener owns and every request task borrows without outliving.
//
// The filter tree root is swapped under rootMu rather than held as a
// plain field, since a config hot-reload replaces it from the watch
// goroutine while connection-handling goroutines are reading it.
type Server struct {
	Loop     *loop.Loop
	Executor async.Executor
	Logger   *logging.Logger
	Limits   httpmsg.Limits

	rootMu sync.RWMutex
	root   *filter.Node
}

// New returns a Server ready to open listeners against.
func New(l *loop.Loop, exec async.Executor, log *logging.Logger, root *filter.Node, limits httpmsg.Limits) *Server {
	return &Server{Loop: l, Executor: exec, Logger: log, Limits: limits, root: root}
}

// Root returns the filter tree currently in effect.
func (s *Server) Root() *filter.Node {
	s.rootMu.RLock()
	defer s.rootMu.RUnlock()
	return s.root
}

// SetRoot atomically replaces the filter tree every subsequently
// accepted connection is matched against. In-flight connections keep
// using whichever root they already read.
func (s *Server) SetRoot(root *filter.Node) {
	s.rootMu.Lock()
	s.root = root
	s.rootMu.Unlock()
}
