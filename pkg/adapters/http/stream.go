package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// allRuns is the subscription key that receives the events of every run.
const allRuns = "*"

// StreamManager fans run lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // RunID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates a stream manager. A nil logger uses slog.Default.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for the events of runID ("" subscribes to
// every run). The returned function unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(runID string) (chan string, func()) {
	if runID == "" {
		runID = allRuns
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 64)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Subscribers returns the number of channels subscribed to runID.
func (sm *StreamManager) Subscribers(runID string) int {
	if runID == "" {
		runID = allRuns
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[runID])
}

// Broadcast sends msg to the subscribers of runID and to global subscribers.
func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sm.logger.Debug("StreamManager: Broadcasting", "run_id", runID, "payload_size", len(msg))

	for _, key := range []string{runID, allRuns} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "run_id", runID)
			}
		}
	}
}

type runEventPayload struct {
	*domain.RunEvent
	Error string `json:"error,omitempty"`
}

// Hooks returns lifecycle hooks that broadcast every engine event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	node := func(_ context.Context, e *domain.NodeEvent) {
		sm.publish(e.RunID, e)
	}
	run := func(_ context.Context, e *domain.RunEvent) {
		payload := runEventPayload{RunEvent: e}
		if e.Err != nil {
			payload.Error = e.Err.Error()
		}
		sm.publish(e.RunID, payload)
	}
	return domain.LifecycleHooks{
		OnRunStart:  run,
		OnNodeEnter: node,
		OnNodeLeave: node,
		OnRunFinish: run,
	}
}

func (sm *StreamManager) publish(runID string, event any) {
	bytes, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("StreamManager: failed to encode event", "run_id", runID, "err", err)
		return
	}
	sm.Broadcast(runID, string(bytes))
}

// SubscribeEvents handles GET /events (SSE).
// Query parameters: run_id limits the stream to one run and watch is a
// comma separated list of event types to keep.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	runID := r.URL.Query().Get("run_id")
	watch := map[domain.EventType]bool{}
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			watch[domain.EventType(strings.TrimSpace(field))] = true
		}
	}

	s.logger.Info("SSE: Subscribing to run events", "run_id", runID)
	ch, cancel := s.streams.Subscribe(runID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "run_id", runID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 {
				var head domain.EventBase
				if err := json.Unmarshal([]byte(msg), &head); err == nil && !watch[head.Type] {
					continue
				}
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
