// Package watch provides dataset file monitoring for audit re-runs.
// It wraps fsnotify to watch a single file through its parent directory,
// so editors that replace the file on save (write to a temp file, rename
// over the target) are still observed, with debouncing to coalesce
// save bursts into one event.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// Constants
// =============================================================================

// DefaultDebounce is the default debounce interval for file events (500ms).
const DefaultDebounce = 500 * time.Millisecond

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoPathConfigured indicates no watch path was specified.
	ErrNoPathConfigured = errors.New("no path configured for watching")

	// ErrPathNotExist indicates the watch path does not exist.
	ErrPathNotExist = errors.New("watch path does not exist")

	// ErrNotRegularFile indicates the watch path is not a regular file.
	ErrNotRegularFile = errors.New("watch path is not a regular file")
)

// =============================================================================
// Event
// =============================================================================

// Op is the kind of change observed on the watched file.
type Op uint8

const (
	// OpModify indicates the file content changed in place.
	OpModify Op = iota

	// OpCreate indicates the file appeared, including a rename over the
	// target during an atomic save.
	OpCreate

	// OpRemove indicates the file was deleted or renamed away.
	OpRemove
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpModify:
		return "modify"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event represents a debounced change to the watched file.
type Event struct {
	// Path is the absolute path to the watched file.
	Path string

	// Op is the last operation observed within the debounce window.
	Op Op

	// Time is when the last operation was detected.
	Time time.Time
}

// =============================================================================
// Config
// =============================================================================

// Config configures the file watcher.
type Config struct {
	// Path is the file to watch.
	Path string

	// Debounce is the interval to wait before emitting an event after the
	// last observed change. Default is 500ms.
	Debounce time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:     path,
		Debounce: DefaultDebounce,
	}
}

// =============================================================================
// pendingEvent tracks the debounced event
// =============================================================================

type pendingEvent struct {
	event *Event
	timer *time.Timer
}

// =============================================================================
// FileWatcher
// =============================================================================

// FileWatcher monitors a single file using fsnotify.
type FileWatcher struct {
	config  Config
	target  string
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	pending  *pendingEvent
	eventCh  chan *Event
	stopOnce sync.Once
	stopped  bool
}

// NewFileWatcher creates a watcher for the configured file.
// Returns an error if the path is missing or not a regular file.
func NewFileWatcher(config Config) (*FileWatcher, error) {
	target, err := validateTarget(&config)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		config:  config,
		target:  target,
		watcher: watcher,
	}, nil
}

// validateTarget checks the configured path and returns its absolute form.
func validateTarget(config *Config) (string, error) {
	if config.Path == "" {
		return "", ErrNoPathConfigured
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	info, err := os.Stat(config.Path)
	if os.IsNotExist(err) {
		return "", ErrPathNotExist
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotRegularFile
	}

	abs, err := filepath.Abs(config.Path)
	if err != nil {
		return "", fmt.Errorf("resolve watch path: %w", err)
	}
	return abs, nil
}

// Target returns the absolute path of the watched file.
func (w *FileWatcher) Target() string {
	return w.target
}

// =============================================================================
// Start
// =============================================================================

// Start begins watching for changes to the file.
// Returns a channel of Events that is closed when the context is cancelled
// or Stop is called. The channel holds one pending event so a change that
// arrives while the consumer is busy is not lost.
func (w *FileWatcher) Start(ctx context.Context) (<-chan *Event, error) {
	w.eventCh = make(chan *Event, 1)

	if err := w.watcher.Add(filepath.Dir(w.target)); err != nil {
		close(w.eventCh)
		return nil, err
	}

	go w.processEvents(ctx)

	return w.eventCh, nil
}

// =============================================================================
// Event Processing
// =============================================================================

// processEvents reads from fsnotify and emits debounced events.
func (w *FileWatcher) processEvents(ctx context.Context) {
	defer w.cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// handleFSEvent filters directory noise down to the watched file.
func (w *FileWatcher) handleFSEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.target {
		return
	}

	op, ok := mapFSNotifyOperation(event.Op)
	if !ok {
		return
	}
	w.scheduleEvent(op)
}

// mapFSNotifyOperation converts fsnotify.Op to Op. Chmod-only events are
// dropped: permission churn must not trigger a re-run.
func mapFSNotifyOperation(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpModify, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpRemove, true
	default:
		return 0, false
	}
}

// =============================================================================
// Debouncing
// =============================================================================

// scheduleEvent (re)arms the debounce timer. The last operation within
// the window wins, so a remove-then-create atomic save emits one create.
func (w *FileWatcher) scheduleEvent(op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	event := &Event{
		Path: w.target,
		Op:   op,
		Time: time.Now(),
	}

	if w.pending != nil {
		w.pending.timer.Stop()
	}
	w.pending = &pendingEvent{
		event: event,
		timer: w.createDebounceTimer(event),
	}
}

// createDebounceTimer creates a timer that emits the event after the
// debounce interval.
func (w *FileWatcher) createDebounceTimer(event *Event) *time.Timer {
	return time.AfterFunc(w.config.Debounce, func() {
		w.emitEvent(event)
	})
}

// emitEvent sends an event to the output channel and clears the pending
// slot. If the buffer already holds an unconsumed event, the new one is
// dropped; the buffered event will trigger the re-run anyway.
func (w *FileWatcher) emitEvent(event *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	w.pending = nil

	select {
	case w.eventCh <- event:
	default:
	}
}

// =============================================================================
// Stop
// =============================================================================

// Stop stops the watcher and closes the event channel.
// Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		if w.pending != nil {
			w.pending.timer.Stop()
			w.pending = nil
		}
		w.mu.Unlock()

		w.watcher.Close()
	})

	return nil
}

// cleanup closes the event channel when processing stops.
func (w *FileWatcher) cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.stopped {
		w.stopped = true
		if w.pending != nil {
			w.pending.timer.Stop()
			w.pending = nil
		}
	}

	close(w.eventCh)
}
