package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/experiment"
	"github.com/google/uuid"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job has stopped
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobRequest describes an experiment to run. Zero fields keep the server's
// base config; Config, when set, replaces the base config entirely.
type JobRequest struct {
	Experiment string   `json:"experiment"`
	Seed       int64    `json:"seed,omitempty"`
	Parallel   int      `json:"parallel,omitempty"`
	Algorithms []string `json:"algorithms,omitempty"`
	Iterations int      `json:"iterations,omitempty"`
	Trials     int      `json:"trials,omitempty"`
	Repeats    int      `json:"repeats,omitempty"`
	Config     string   `json:"config,omitempty"`
}

// Resolve builds the validated config the job runs with
func (r JobRequest) Resolve(base *config.Config) (*config.Config, error) {
	var cfg *config.Config
	if r.Config != "" {
		parsed, err := config.Parse(strings.NewReader(r.Config))
		if err != nil {
			return nil, err
		}
		cfg = parsed
	} else {
		cfg = base.Clone()
	}

	cfg.ApplyOverrides(config.Overrides{
		Experiment: r.Experiment,
		Seed:       r.Seed,
		Parallel:   r.Parallel,
		Algorithms: r.Algorithms,
		Iterations: r.Iterations,
		Trials:     r.Trials,
		Repeats:    r.Repeats,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Job represents an experiment run in the background
type Job struct {
	ID         string     `json:"id"`
	State      JobState   `json:"state"`
	Request    JobRequest `json:"request"`
	Experiment string     `json:"experiment"`
	Seed       int64      `json:"seed"`

	// Latest progress
	Algorithm string  `json:"algorithm,omitempty"`
	Trial     int     `json:"trial,omitempty"`
	Iteration int     `json:"iteration"`
	Total     int     `json:"total"`
	Value     float64 `json:"value"`
	Steps     int     `json:"steps"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`

	// RunID is the stored run of a completed job
	RunID string `json:"runId,omitempty"`

	config *config.Config
	report *experiment.Report
}

// Elapsed returns the run time so far, or the total once the job ended
func (j *Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a pending job for a resolved config
func (jm *JobManager) CreateJob(req JobRequest, cfg *config.Config) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:         uuid.New().String(),
		State:      StatePending,
		Request:    req,
		Experiment: cfg.Experiment,
		Seed:       cfg.Seed,
		StartTime:  time.Now(),
		config:     cfg,
	}

	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a snapshot of a job by ID
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartTime.Before(jobs[k].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, *job)
		}
	}
	return runningJobs
}

// setCancel registers the cancel function of a started job
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// clearCancel drops the cancel function of a finished job
func (jm *JobManager) clearCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob stops a pending or running job. It returns false if the job does
// not exist or has already stopped.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.RLock()
	job, exists := jm.jobs[id]
	cancel := jm.cancels[id]
	stopped := exists && job.State.Terminal()
	jm.mu.RUnlock()

	if !exists || stopped || cancel == nil {
		return false
	}
	cancel()
	return true
}
