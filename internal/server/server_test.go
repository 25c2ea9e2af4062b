package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/ribosearch/internal/config"
	"github.com/cwbudde/ribosearch/internal/design"
	"github.com/cwbudde/ribosearch/internal/store"
)

func TestServer_CreateJob(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	body := []byte(`{"initial": "AAAAAAAAAAAA", "maxSuccessiveFails": 10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.Config.Initial != "AAAAAAAAAAAA" {
		t.Errorf("Expected initial sequence from request, got %q", job.Config.Initial)
	}
	if job.Config.Objective.Name != config.Default().Objective.Name {
		t.Errorf("Missing fields should keep defaults, got objective %q", job.Config.Objective.Name)
	}

	waitForState(t, s.jobManager, job.ID, StateCompleted)
}

func TestServer_CreateJob_Invalid(t *testing.T) {
	s := NewServer(":8080", nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"seed":`},
		{"unknown decision", `{"decision": "annealing"}`},
		{"single symbol alphabet", `{"alphabet": "AAAA"}`},
		{"metropolis without scale", `{"decision": "metropolis", "scaleFactor": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}

	if len(s.jobManager.ListJobs()) != 0 {
		t.Error("Invalid requests should not create jobs")
	}
}

func TestServer_CreateJob_RejectsClientCommand(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	marker := filepath.Join(t.TempDir(), "marker")
	script := fmt.Sprintf("touch %s; read s; echo '.... (0.0)'", marker)

	tests := []struct {
		name      string
		objective map[string]interface{}
	}{
		{"command", map[string]interface{}{"name": "fold", "command": "sh", "args": []string{"-c", script}}},
		{"args only", map[string]interface{}{"name": "fold", "args": []string{"--noPS", "-T", "99"}}},
		{"nested term", map[string]interface{}{
			"name": "weighted",
			"terms": []map[string]interface{}{
				{"name": "gc-count"},
				{"name": "fold", "command": "sh", "args": []string{"-c", script}},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]interface{}{"initial": "AUGC", "objective": tt.objective})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}

	if len(s.jobManager.ListJobs()) != 0 {
		t.Error("Rejected requests should not create jobs")
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("Client-supplied command was executed")
	}
}

func TestServer_CreateJob_UsesServerFoldEngine(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	// Stand-in engine: every sequence folds to an open chain.
	s.SetFoldEngine("sh", []string{"-c", `read s; echo "$(echo "$s" | tr 'AUGC' '....') (-1.00)"`})

	body := []byte(`{"initial": "AUGCAUGC", "maxSuccessiveFails": 3, "objective": {"name": "fold"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.Config.Objective.Command != "sh" {
		t.Errorf("Expected server fold engine in job config, got %q", job.Config.Objective.Command)
	}

	waitForState(t, s.jobManager, job.ID, StateCompleted)

	done, _ := s.jobManager.GetJob(job.ID)
	if done.InitScore != -1 || done.CurrentScore != -1 {
		t.Errorf("Expected fold energy -1, got %v -> %v", done.InitScore, done.CurrentScore)
	}
}

func TestServer_ListJobs(t *testing.T) {
	s := NewServer(":8080", nil)

	s.jobManager.CreateJob(config.Default())
	s.jobManager.CreateJob(config.Default())

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

func TestServer_MethodNotAllowed(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_GetJobStatus(t *testing.T) {
	s := NewServer(":8080", nil)

	job := s.jobManager.CreateJob(config.Default())
	s.jobManager.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Steps = 40
		j.SuccessfulSteps = 12
		j.CurrentSequence = "GGGGCCCC"
		j.CurrentScore = -8
	})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%s/status", job.ID), nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if status["id"] != job.ID {
		t.Errorf("Expected job ID %s, got %v", job.ID, status["id"])
	}
	if status["state"] != string(StateRunning) {
		t.Errorf("Expected running state, got %v", status["state"])
	}
	if status["steps"] != float64(40) {
		t.Errorf("Expected 40 steps, got %v", status["steps"])
	}
	if status["currentSequence"] != "GGGGCCCC" {
		t.Errorf("Expected current sequence GGGGCCCC, got %v", status["currentSequence"])
	}
}

func TestServer_GetJobStatus_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nonexistent/status", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_CancelJob(t *testing.T) {
	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	body, _ := json.Marshal(endlessConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%s/cancel", job.ID), nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	waitForState(t, s.jobManager, job.ID, StateCancelled)

	// A finished job cannot be cancelled again
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/jobs/%s/cancel", job.ID), nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/nonexistent/cancel", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Shutdown_CancelsJobs(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(endlessConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	waitForState(t, s.jobManager, job.ID, StateCancelled)
}

func TestServer_Results(t *testing.T) {
	resultStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	cfg := quickConfig()
	res, err := design.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if err := resultStore.SaveResult("run-1", store.NewResult("run-1", cfg, res)); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	s := NewServer(":8080", resultStore)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var infos []store.ResultInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "run-1" {
		t.Fatalf("Expected one result run-1, got %+v", infos)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/results/run-1", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var loaded store.Result
	if err := json.NewDecoder(w.Body).Decode(&loaded); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if loaded.FinalSequence != res.FinalSequence {
		t.Errorf("Expected final sequence %s, got %s", res.FinalSequence, loaded.FinalSequence)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/results/missing", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Results_NoStore(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(":8080", nil)

	jm := s.jobManager
	job := jm.CreateJob(quickConfig())
	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"ribosearch_jobs_finished_total", "ribosearch_search_steps_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected metric %s in output", name)
		}
	}
}

func TestServer_CORS(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping SSE test in short mode")
	}

	s := NewServer(":8080", nil)
	defer s.Shutdown(context.Background())

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	body, _ := json.Marshal(endlessConfig())
	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Create request failed: %v", err)
	}
	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	resp.Body.Close()

	stream, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/stream", ts.URL, job.ID))
	if err != nil {
		t.Fatalf("Stream request failed: %v", err)
	}
	defer stream.Body.Close()

	if stream.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %s", stream.Header.Get("Content-Type"))
	}

	events := make(chan ProgressEvent)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(stream.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev ProgressEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			events <- ev
		}
	}()

	// First event is the current job state
	select {
	case ev := <-events:
		if ev.JobID != job.ID {
			t.Errorf("Expected event for job %s, got %s", job.ID, ev.JobID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for initial event")
	}

	if err := s.jobManager.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}

	// The stream ends with the terminal event
	timeout := time.After(5 * time.Second)
	var last ProgressEvent
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if last.State != StateCancelled {
					t.Errorf("Expected final state cancelled, got %s", last.State)
				}
				return
			}
			last = ev
		case <-timeout:
			t.Fatal("Timeout waiting for stream to end")
		}
	}
}

func TestServer_JobStream_NotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nonexistent/stream", nil)
	w := httptest.NewRecorder()

	s.handleJobStream(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job1")
	defer eb.Unsubscribe("job1", ch)

	event := ProgressEvent{
		JobID:          "job1",
		State:          StateRunning,
		Steps:          10,
		CurrentScore:   -5,
		StepsPerSecond: 1500.0,
		Timestamp:      time.Now(),
	}
	eb.Broadcast(event)

	select {
	case received := <-ch:
		if received.JobID != "job1" {
			t.Errorf("Expected jobID job1, got %s", received.JobID)
		}
		if received.Steps != 10 {
			t.Errorf("Expected 10 steps, got %d", received.Steps)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	// Late subscribers get the last event
	late := eb.Subscribe("job1")
	select {
	case received := <-late:
		if received.Steps != 10 {
			t.Errorf("Expected replayed event with 10 steps, got %d", received.Steps)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for replayed event")
	}
	eb.Unsubscribe("job1", late)

	eb.CleanupJob("job1")
}

func waitForState(t *testing.T, jm *JobManager, jobID string, want JobState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := jm.GetJob(jobID)
		if job.State == want {
			return
		}
		if job.State.Terminal() {
			t.Fatalf("Job ended in state %s, expected %s (error: %s)", job.State, want, job.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timeout waiting for job %s to reach %s", jobID, want)
}
