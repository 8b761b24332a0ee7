package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/experiment"
	"github.com/cwbudde/optbench/internal/store"
)

func newTestServer(t *testing.T, runStore store.Store) *Server {
	t.Helper()
	s := NewServer(":8080", Options{Base: testConfig(), Store: runStore})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	})
	return s
}

func createJob(t *testing.T, h http.Handler, req JobRequest) Job {
	t.Helper()
	body, _ := json.Marshal(req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return job
}

func waitForState(t *testing.T, s *Server, id string) Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := s.jobManager.GetJob(id)
		if job.State.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish", id)
	return Job{}
}

func TestServer_CreateJob(t *testing.T) {
	s := newTestServer(t, nil)

	job := createJob(t, s.Handler(), JobRequest{Seed: 42})

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.Seed != 42 || job.Experiment != config.ExperimentTwoColors {
		t.Errorf("Unexpected job: seed=%d experiment=%s", job.Seed, job.Experiment)
	}

	// State should be pending or running (since worker starts immediately)
	if job.State != StatePending && job.State != StateRunning {
		t.Errorf("Expected pending or running state, got %s", job.State)
	}

	if final := waitForState(t, s, job.ID); final.State != StateCompleted {
		t.Errorf("Expected completed job, got %s (%s)", final.State, final.Error)
	}
}

func TestServer_CreateJob_BadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"unknown experiment", `{"experiment":"knapsack"}`},
		{"invalid config", `{"config":"tsp:\n  cities: 1\n"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}

	if len(s.jobManager.ListJobs()) != 0 {
		t.Error("Rejected requests should not create jobs")
	}
}

func TestServer_ListJobs(t *testing.T) {
	s := newTestServer(t, nil)

	// Create two jobs
	s.jobManager.CreateJob(JobRequest{}, testConfig())
	s.jobManager.CreateJob(JobRequest{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var jobs []Job
	if err := json.NewDecoder(w.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_GetJobStatus(t *testing.T) {
	s := newTestServer(t, nil)

	job := s.jobManager.CreateJob(JobRequest{}, testConfig())

	for _, path := range []string{"/api/v1/jobs/" + job.ID, "/api/v1/jobs/" + job.ID + "/status"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}

		var status map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}

		if status["id"] != job.ID {
			t.Errorf("Expected job ID %s, got %v", job.ID, status["id"])
		}
		if status["state"] != string(StatePending) {
			t.Errorf("Expected pending state, got %v", status["state"])
		}
	}
}

func TestServer_GetJobStatus_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nonexistent/status", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_GetReport(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	pending := s.jobManager.CreateJob(JobRequest{}, testConfig())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+pending.ID+"/report", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a pending job, got %d", w.Code)
	}

	job := createJob(t, h, JobRequest{})
	waitForState(t, s, job.ID)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/report", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Expected text report, got %s", w.Header().Get("Content-Type"))
	}
	if lines := strings.Count(w.Body.String(), "\n"); lines != 4 {
		t.Errorf("Expected one value per algorithm, got %d lines:\n%s", lines, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/report?format=json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var report experiment.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.TwoColors == nil || len(report.TwoColors.Results) != 4 {
		t.Errorf("Unexpected JSON report: %+v", report)
	}
}

func TestServer_CancelJob(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	job := createJob(t, h, JobRequest{Experiment: config.ExperimentTSP, Trials: 20})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+job.ID, nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}

	if final := waitForState(t, s, job.ID); final.State != StateCancelled {
		t.Errorf("Expected cancelled job, got %s", final.State)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+job.ID, nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a stopped job, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/nonexistent", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Runs(t *testing.T) {
	runStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	s := newTestServer(t, runStore)
	h := s.Handler()

	job := createJob(t, h, JobRequest{})
	final := waitForState(t, s, job.ID)
	if final.RunID == "" {
		t.Fatal("Completed job should reference its run")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var infos []store.RunInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode runs: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != final.RunID {
		t.Errorf("Unexpected runs: %+v", infos)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+final.RunID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var run store.Run
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatalf("Failed to decode run: %v", err)
	}
	if len(run.Results) != 4 {
		t.Errorf("Expected 4 results, got %d", len(run.Results))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Runs_NoStore(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)
	job := s.jobManager.CreateJob(JobRequest{}, testConfig())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/v1/jobs"},
		{http.MethodPost, "/api/v1/jobs/" + job.ID},
		{http.MethodPost, "/api/v1/runs"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status 405, got %d", tt.method, tt.path, w.Code)
		}
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete) {
		t.Error("CORS should allow DELETE")
	}
}

func TestServer_Integration(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	body, _ := json.Marshal(JobRequest{Seed: 3})
	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode job: %v", err)
	}
	resp.Body.Close()

	// The stream ends with the terminal event
	resp, err = http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/stream", ts.URL, job.ID))
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Error("Expected text/event-stream content type")
	}

	var last ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last); err != nil {
			t.Fatalf("Failed to parse event %q: %v", line, err)
		}
	}

	if last.JobID != job.ID {
		t.Errorf("Expected events for %s, got %s", job.ID, last.JobID)
	}
	if last.State != StateCompleted {
		t.Errorf("Expected final completed event, got %s", last.State)
	}
}

func TestServer_JobStream_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nonexistent/stream", nil)
	w := httptest.NewRecorder()

	s.handleJobStream(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_JobStream_Terminal(t *testing.T) {
	s := newTestServer(t, nil)
	job := s.jobManager.CreateJob(JobRequest{}, testConfig())
	s.jobManager.UpdateJob(job.ID, func(j *Job) { j.State = StateFailed; j.Error = "boom" })

	w := httptest.NewRecorder()
	s.handleJobStream(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/stream", nil), job.ID)

	body := w.Body.String()
	if strings.Count(body, "data: ") != 1 || !strings.Contains(body, `"error":"boom"`) {
		t.Errorf("Expected a single terminal event, got %q", body)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	// Subscribe to events
	ch := eb.Subscribe("job1")
	defer eb.Unsubscribe("job1", ch)

	// Broadcast an event
	event := ProgressEvent{
		JobID:     "job1",
		State:     StateRunning,
		Algorithm: config.GA,
		Iteration: 10,
		Value:     100.5,
		Timestamp: time.Now(),
	}
	eb.Broadcast(event)

	// Receive event
	select {
	case received := <-ch:
		if received.JobID != "job1" {
			t.Errorf("Expected jobID job1, got %s", received.JobID)
		}
		if received.Iteration != 10 {
			t.Errorf("Expected 10 iterations, got %d", received.Iteration)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	// Late subscribers get the last event
	late := eb.Subscribe("job1")
	select {
	case received := <-late:
		if received.Algorithm != config.GA {
			t.Errorf("Expected replayed GA event, got %s", received.Algorithm)
		}
	default:
		t.Error("Late subscriber should receive the last event")
	}

	// Cleanup closes channels; a later Unsubscribe is a no-op
	eb.CleanupJob("job1")
	if _, ok := <-late; ok {
		t.Error("CleanupJob should close subscriber channels")
	}
	eb.Unsubscribe("job1", late)
}

func TestServer_ShutdownEndsStreams(t *testing.T) {
	s := NewServer(":0", Options{Base: testConfig()})
	job := s.jobManager.CreateJob(JobRequest{}, testConfig())
	s.jobManager.UpdateJob(job.ID, func(j *Job) { j.State = StateRunning })

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleJobStream(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/stream", nil), job.ID)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.jobManager.broadcaster.subscribers(job.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stream should end on shutdown")
	}
}
