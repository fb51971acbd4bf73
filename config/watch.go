package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file on write, forwarding either the newly
// loaded Config or the error that reload attempt produced. Reload
// failures do not stop watching — a config file mid-edit or briefly
// invalid should not tear down the watcher itself.
type Watcher struct {
	fsw     *fsnotify.Watcher
	path    string
	Changes chan *Config
	Errors  chan error
}

// Watch starts watching path for writes, reloading and decoding on
// each one. Call Close to stop.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		path:    path,
		Changes: make(chan *Config),
		Errors:  make(chan error),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.Errors <- err
				continue
			}
			w.Changes <- cfg
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Errors <- err
		}
	}
}

// Close stops the watcher and releases its inotify handle.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
