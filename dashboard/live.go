package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/auditmos/devdash/applog"
	"github.com/auditmos/devdash/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
)

const (
	defaultDebounce = 250 * time.Millisecond
	writeWait       = 5 * time.Second
)

// StatsFeed watches the log directory and pushes fresh stats to every
// subscriber after a burst of changes settles. Slow subscribers only ever
// see the latest snapshot.
type StatsFeed struct {
	store    LogStore
	diag     logging.Logger
	debounce time.Duration

	mu     sync.Mutex
	subs   map[chan applog.Stats]struct{}
	ready  chan struct{}
	onceRd sync.Once
}

func NewStatsFeed(store LogStore, diag logging.Logger) *StatsFeed {
	if diag == nil {
		diag = logging.NopLogger{}
	}
	return &StatsFeed{
		store:    store,
		diag:     diag,
		debounce: defaultDebounce,
		subs:     make(map[chan applog.Stats]struct{}),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory watch is established.
func (f *StatsFeed) Ready() <-chan struct{} {
	return f.ready
}

func (f *StatsFeed) Subscribe() (<-chan applog.Stats, func()) {
	ch := make(chan applog.Stats, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
		})
	}
}

func (f *StatsFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *StatsFeed) publish() {
	stats := f.store.Stats()

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- stats
	}
}

// Run blocks until ctx is done.
func (f *StatsFeed) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(f.store.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", f.store.Dir(), err)
	}
	f.onceRd.Do(func() { close(f.ready) })
	f.diag.WithFields(logging.Fields{"dir": f.store.Dir()}).Info(component, "live", "Watching log directory")

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".log") || ev.Op == fsnotify.Chmod {
				continue
			}
			if fire == nil {
				fire = time.After(f.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.diag.WithError(err).Warn(component, "live", "Watcher error")
		case <-fire:
			fire = nil
			f.publish()
		}
	}
}

type liveMessage struct {
	Type      string       `json:"type"`
	Stats     applog.Stats `json:"stats"`
	Timestamp string       `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (s *Server) handleLogsLive(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeJSONError(w, "live stats not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn(component, "live", "WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	// read pump: only used to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(st applog.Stats) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(liveMessage{
			Type:      "stats",
			Stats:     st,
			Timestamp: s.now().UTC().Format(time.RFC3339),
		})
	}

	if err := send(s.logs.Stats()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st := <-updates:
			if err := send(st); err != nil {
				s.logger.WithError(err).Debug(component, "live", "WebSocket write failed")
				return
			}
		}
	}
}
