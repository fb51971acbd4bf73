// Package app wires a decoded config.Config into a running set of
// gateway listeners: one event loop, one thread-pool executor, one
// compiled filter tree, and one gateway.Listener per configured
// address, torn down on SIGINT/SIGTERM per spec §6's CLI paragraph.
// It also drives the optional config.Watch hot-reload path: a changed
// config file rebuilds the filter tree and reconciles the listener set
// without restarting the process.
package app

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/wrknet/warpgate/config"
	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/gateway"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/logging"
	"github.com/wrknet/warpgate/internal/loop"
)

// App is one running gateway instance: an event loop, a thread-pool
// executor, and the listeners built from a config.Config.
type App struct {
	logger     *logging.Logger
	loop       *loop.Loop
	executor   *async.ThreadPoolExecutor
	server     *gateway.Server
	configPath string

	mu        sync.Mutex
	listeners map[string]*gateway.Listener

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds an App from cfg: compiles the filter tree, opens every
// configured listen address, but does not yet start accepting.
// configPath is kept so Run can watch the same file for hot-reload.
func New(configPath string, cfg *config.Config) (*App, error) {
	logger := cfg.Logger(os.Stderr)

	l, err := loop.New()
	if err != nil {
		return nil, fmt.Errorf("app: starting event loop: %w", err)
	}

	root, err := cfg.FilterTree()
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("app: compiling filter tree: %w", err)
	}

	listenConfigs, err := cfg.ListenConfigs()
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("app: building listen configs: %w", err)
	}

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	executor := async.NewThreadPoolExecutor(workers)

	a := &App{
		logger:     logger,
		loop:       l,
		executor:   executor,
		server:     gateway.New(l, executor, logger, root, httpmsg.DefaultLimits),
		configPath: configPath,
		listeners:  make(map[string]*gateway.Listener),
		stop:       make(chan struct{}),
	}

	for _, lc := range listenConfigs {
		ln, err := a.server.Listen(lc)
		if err != nil {
			a.closeAllListeners()
			executor.Close()
			l.Close()
			return nil, fmt.Errorf("app: listening on %s: %w", lc.Address, err)
		}
		logger.Info("listening on %s", lc.Address)
		a.listeners[lc.Address] = ln
	}

	return a, nil
}

// Run drives the event loop and every listener's accept loop, watches
// configPath for changes, and shuts down on SIGINT/SIGTERM.
func (a *App) Run() error {
	go a.loop.Run(a.stop)

	a.mu.Lock()
	for _, ln := range a.listeners {
		a.serve(ln)
	}
	a.mu.Unlock()

	watcher, err := config.Watch(a.configPath)
	if err != nil {
		a.logger.Warn("app: config hot-reload disabled for %s: %v", a.configPath, err)
	} else {
		go a.watchConfig(watcher)
		defer watcher.Close()
	}

	a.awaitSignal()
	a.wg.Wait()
	return nil
}

// serve starts ln's accept loop on its own goroutine, tracked by wg so
// Run can wait for every listener to stop before returning.
func (a *App) serve(ln *gateway.Listener) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := ln.Serve(a.stop); err != nil {
			a.logger.Error("app: listener stopped: %v", err)
		}
	}()
}

// watchConfig applies every reload config.Watch delivers until stop
// closes or the watcher's channels are closed out from under it.
func (a *App) watchConfig(w *config.Watcher) {
	for {
		select {
		case <-a.stop:
			return
		case cfg, ok := <-w.Changes:
			if !ok {
				return
			}
			a.applyConfig(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			a.logger.Error("app: config reload: %v", err)
		}
	}
}

// applyConfig rebuilds the filter tree and reconciles the listener set
// against cfg. Listen addresses dropped from the file are closed;
// addresses newly added are opened and served. An address kept across
// reloads keeps its existing socket and TLS contexts as-is — changing
// a live listener's network or TLS settings requires a restart.
func (a *App) applyConfig(cfg *config.Config) {
	root, err := cfg.FilterTree()
	if err != nil {
		a.logger.Error("app: reload: rebuilding filter tree: %v", err)
		return
	}

	listenConfigs, err := cfg.ListenConfigs()
	if err != nil {
		a.logger.Error("app: reload: building listen configs: %v", err)
		return
	}

	a.server.SetRoot(root)

	wanted := make(map[string]gateway.ListenConfig, len(listenConfigs))
	for _, lc := range listenConfigs {
		wanted[lc.Address] = lc
	}

	a.mu.Lock()
	var removed []*gateway.Listener
	for addr, ln := range a.listeners {
		if _, ok := wanted[addr]; !ok {
			removed = append(removed, ln)
			delete(a.listeners, addr)
		}
	}
	var added []gateway.ListenConfig
	for addr, lc := range wanted {
		if _, ok := a.listeners[addr]; !ok {
			added = append(added, lc)
		}
	}
	a.mu.Unlock()

	for _, ln := range removed {
		ln.Close()
	}
	for _, lc := range added {
		ln, err := a.server.Listen(lc)
		if err != nil {
			a.logger.Error("app: reload: listening on %s: %v", lc.Address, err)
			continue
		}
		a.mu.Lock()
		a.listeners[lc.Address] = ln
		a.mu.Unlock()
		a.serve(ln)
		a.logger.Info("app: reload: now listening on %s", lc.Address)
	}

	a.logger.Info("app: config reloaded from %s", a.configPath)
}

func (a *App) closeAllListeners() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for addr, ln := range a.listeners {
		ln.Close()
		delete(a.listeners, addr)
	}
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	a.logger.Info("received %v, shutting down", sig)

	close(a.stop)
	a.closeAllListeners()
	a.executor.Close()
	a.loop.Close()
}
