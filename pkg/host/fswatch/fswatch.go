// Package fswatch adapts a watched directory to the document signal family.
// It exists for demos and local development: each file plays the role of a
// document, so the broker pipeline can be exercised without a real host.
package fswatch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/forgeline/signalbus/pkg/host"
)

// Source emits document signals for filesystem changes under a directory.
type Source struct {
	dir    string
	logger *zerolog.Logger
}

// New creates a file-watch document source for the given directory.
func New(dir string, logger *zerolog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// Name implements host.DocumentSource.
func (s *Source) Name() string {
	return "fswatch:" + s.dir
}

// Connect implements host.DocumentSource. The returned disconnect function
// closes the watcher and waits for the delivery goroutine to exit, so no
// callback runs after it returns.
func (s *Source) Connect(cb func(host.DocumentSignal)) (host.DisconnectFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if sig, relevant := translate(ev); relevant {
					cb(sig)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Str("dir", s.dir).Msg("File watcher error")
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = watcher.Close()
			<-done
		})
	}, nil
}

// translate maps a filesystem notification to a document signal.
func translate(ev fsnotify.Event) (host.DocumentSignal, bool) {
	id := filepath.Base(ev.Name)

	switch {
	case ev.Op.Has(fsnotify.Create):
		return host.DocumentSignal{Op: host.DocumentCreated, DocumentID: id}, true
	case ev.Op.Has(fsnotify.Write):
		return host.DocumentSignal{Op: host.DocumentChanged, DocumentID: id, RecomputedIDs: []string{id}}, true
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		return host.DocumentSignal{Op: host.DocumentClosed, DocumentID: id}, true
	default:
		return host.DocumentSignal{}, false
	}
}
