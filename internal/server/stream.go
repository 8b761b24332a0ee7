package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ProgressEvent is the state of a job as pushed to stream clients
type ProgressEvent struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	Algorithm string    `json:"algorithm,omitempty"`
	Trial     int       `json:"trial,omitempty"`
	Iteration int       `json:"iteration"`
	Total     int       `json:"total"`
	Value     float64   `json:"value"`
	Steps     int       `json:"steps"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// eventFor snapshots a job as an event
func eventFor(job Job) ProgressEvent {
	return ProgressEvent{
		JobID:     job.ID,
		State:     job.State,
		Algorithm: job.Algorithm,
		Trial:     job.Trial,
		Iteration: job.Iteration,
		Total:     job.Total,
		Value:     job.Value,
		Steps:     job.Steps,
		Error:     job.Error,
		Timestamp: time.Now(),
	}
}

// subscriberBuffer is the number of events queued per client
const subscriberBuffer = 10

// EventBroadcaster fans job events out to stream subscribers. The latest
// event of each job is replayed to new subscribers.
type EventBroadcaster struct {
	mu        sync.Mutex
	clients   map[string]map[chan ProgressEvent]struct{}
	lastEvent map[string]ProgressEvent
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan ProgressEvent]struct{}),
		lastEvent: make(map[string]ProgressEvent),
	}
}

// Subscribe registers a client for the events of a job
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBuffer)
	if eb.clients[jobID] == nil {
		eb.clients[jobID] = make(map[chan ProgressEvent]struct{})
	}
	eb.clients[jobID][ch] = struct{}{}

	if last, ok := eb.lastEvent[jobID]; ok {
		ch <- last
	}

	slog.Debug("Stream client subscribed", "job_id", jobID, "clients", len(eb.clients[jobID]))
	return ch
}

// Unsubscribe removes and closes a client channel. Channels already closed by
// CleanupJob are ignored.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	clients := eb.clients[jobID]
	if _, ok := clients[ch]; !ok {
		return
	}
	delete(clients, ch)
	close(ch)
	if len(clients) == 0 {
		delete(eb.clients, jobID)
	}
	slog.Debug("Stream client unsubscribed", "job_id", jobID)
}

// Broadcast records event as the job's latest and queues it for every client
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.lastEvent[event.JobID] = event
	for ch := range eb.clients[event.JobID] {
		deliver(ch, event)
	}
}

// deliver queues event on ch, dropping the oldest queued event of a slow
// client. Only the broadcaster sends on ch, under its lock.
func deliver(ch chan ProgressEvent, event ProgressEvent) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case dropped := <-ch:
			slog.Debug("Dropped stream event for slow client", "job_id", dropped.JobID, "steps", dropped.Steps)
		default:
		}
	}
}

func (eb *EventBroadcaster) subscribers(jobID string) int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.clients[jobID])
}

// CleanupJob closes every client of a job and forgets its latest event
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for ch := range eb.clients[jobID] {
		close(ch)
	}
	delete(eb.clients, jobID)
	delete(eb.lastEvent, jobID)
}

// handleJobStream streams job events as server-sent events until the job
// reaches a terminal state or the client goes away
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	send := func(event ProgressEvent) bool {
		if err := writeSSEEvent(w, event); err != nil {
			slog.Warn("Failed to write stream event", "job_id", jobID, "error", err)
			return false
		}
		flusher.Flush()
		return !event.State.Terminal()
	}

	if !send(eventFor(job)) {
		return
	}

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("Stream client disconnected", "job_id", jobID)
			return
		case event, ok := <-events:
			if !ok || !send(event) {
				return
			}
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one "data: {json}" frame
func writeSSEEvent(w io.Writer, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
