package scripting

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 100 * time.Millisecond

// Watcher reports changed .lua files under the watched directories on
// Events. A file is reported once it has been quiet for the debounce
// period, so a burst of writes yields one event after the last of them.
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	settled chan settled
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		settled: make(chan settled),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Close stops the watcher. Events and Errors are closed once the run loop
// has exited.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

// settled is a quiet-period expiry; seq discards timers superseded by a
// later event for the same file.
type settled struct {
	name string
	seq  uint64
}

type quiet struct {
	timer *time.Timer
	seq   uint64
}

func (w *Watcher) run() {
	pending := make(map[string]*quiet)
	var seq uint64
	defer func() {
		for _, q := range pending {
			q.timer.Stop()
		}
		close(w.Events)
		close(w.Errors)
		close(w.done)
	}()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isScriptFile(event.Name) {
				continue
			}
			if q, ok := pending[event.Name]; ok {
				q.timer.Stop()
			}
			seq++
			s := settled{name: event.Name, seq: seq}
			pending[s.name] = &quiet{
				seq: s.seq,
				timer: time.AfterFunc(debounce, func() {
					select {
					case w.settled <- s:
					case <-w.closeCh:
					}
				}),
			}
		case s := <-w.settled:
			if q, ok := pending[s.name]; !ok || q.seq != s.seq {
				continue
			}
			delete(pending, s.name)
			select {
			case w.Events <- s.name:
			case <-w.closeCh:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

func isScriptFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".lua"
}
