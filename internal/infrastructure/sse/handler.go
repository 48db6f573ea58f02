// Package sse streams task list changes to browsers via Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

// Broker fans task list changes out to connected clients.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan tasks.Change]struct{}
	logger  *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		clients: make(map[chan tasks.Change]struct{}),
		logger:  logger.With("svc", "sse.Broker"),
	}
}

// Publish hands the change to every client without blocking.
func (b *Broker) Publish(change tasks.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- change:
		default:
			// Drop if client is slow
			b.logger.Debug("dropping change for slow client", "type", change.Kind)
		}
	}
}

// Clients reports the number of open streams.
func (b *Broker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP handles SSE connections. ?types=task.completed,task.reopened
// limits the stream to the named change kinds.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	typeFilter := make(map[tasks.ChangeKind]bool)
	if types := r.URL.Query().Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			typeFilter[tasks.ChangeKind(strings.TrimSpace(t))] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan tasks.Change, 64)

	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
	}()

	// Comment line so clients see the stream open before the first change.
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-ch:
			if len(typeFilter) > 0 && !typeFilter[change.Kind] {
				continue
			}

			data, err := json.Marshal(change)
			if err != nil {
				b.logger.Error("encode change", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\n", change.Kind)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
