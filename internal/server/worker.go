package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/optbench/internal/experiment"
	"github.com/cwbudde/optbench/internal/store"
)

// progressInterval throttles broadcast progress events
const progressInterval = 500 * time.Millisecond

// runJob executes an experiment job in the background. A non-nil runStore
// receives the completed run. With a traceDir, every traceEvery-th step of each
// algorithm is appended to the run's trace.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, traceDir string, traceEvery int, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	defer jm.clearCancel(jobID)

	if err := ctx.Err(); err != nil {
		markJobCancelled(jm, jobID)
		return err
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	cfg := job.config
	slog.Info("Starting job", "job_id", jobID, "experiment", cfg.Experiment, "seed", cfg.Seed)

	var trace *store.TraceWriter
	if traceDir != "" {
		trace, err = store.NewTraceWriter(traceDir, jobID, false)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer func() {
			if err := trace.Close(); err != nil {
				slog.Warn("Failed to close trace", "job_id", jobID, "error", err)
			}
		}()
	}

	onProgress := func(p experiment.Progress) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Algorithm = p.Algorithm
			j.Trial = p.Trial
			j.Iteration = p.Iteration
			j.Total = p.Total
			j.Value = p.Value
			j.Steps++
		})
		if trace != nil && traceEvery > 0 && (p.Iteration%traceEvery == 0 || p.Iteration == p.Total) {
			entry := store.TraceEntry{
				Problem:   p.Experiment,
				Algorithm: p.Algorithm,
				Trial:     p.Trial,
				Iteration: p.Iteration,
				Value:     p.Value,
				Timestamp: time.Now(),
			}
			if err := trace.Write(entry); err != nil {
				slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
	}

	start := time.Now()
	progressDone := make(chan struct{})
	var monitor sync.WaitGroup
	monitor.Add(1)
	go func() {
		defer monitor.Done()
		monitorProgress(ctx, jm, jobID, progressDone)
	}()

	report, err := experiment.Run(ctx, cfg, experiment.Options{
		Progress: onProgress,
		Parallel: cfg.Parallel,
	})
	close(progressDone)
	monitor.Wait()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	var text bytes.Buffer
	if err := report.Format(&text); err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	runID := ""
	if runStore != nil {
		run := store.NewRun(jobID, cfg.Experiment, cfg.Seed, report.Results())
		run.Duration = elapsed
		run.Report = text.String()
		if run.Config, err = cfg.YAML(); err != nil {
			slog.Warn("Failed to encode job config", "job_id", jobID, "error", err)
		}
		if err := runStore.SaveRun(run); err != nil {
			slog.Error("Failed to save run", "job_id", jobID, "error", err)
		} else {
			runID = run.ID
		}
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
		j.RunID = runID
		j.report = report
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed", "job_id", jobID, "elapsed", elapsed, "run_id", runID)

	final, _ := jm.GetJob(jobID)
	jm.broadcaster.Broadcast(eventFor(final))
	return nil
}

// monitorProgress periodically broadcasts progress events while a job runs
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(eventFor(job))
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFor(job))
	}
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFor(job))
	}
}
