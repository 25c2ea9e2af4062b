package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/ribosearch/internal/design"
	"github.com/cwbudde/ribosearch/internal/search"
	"github.com/cwbudde/ribosearch/internal/store"
)

// progressEvery is how many rejected steps may pass between job snapshots.
// Accepted steps always refresh the snapshot.
const progressEvery = 64

// runJob executes a design search in the background.
// If resultStore is not nil the final result is saved under the job ID.
func runJob(ctx context.Context, jm *JobManager, resultStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	var s *design.Search
	observer := func(p search.Progress) {
		recordStep(p.Accepted)
		if !p.Accepted && p.Step%progressEvery != 0 {
			return
		}
		var current string
		if p.Accepted {
			current = s.Optimizer.CurrentState().String()
		}
		jm.UpdateJob(jobID, func(j *Job) {
			j.Steps = p.Step
			j.SuccessfulSteps = p.SuccessfulSteps
			j.CurrentScore = p.CurrentScore
			if current != "" {
				j.CurrentSequence = current
			}
		})
	}

	s, err := design.New(ctx, job.Config, observer)
	if err != nil {
		if ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return err
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	initSeq := s.Optimizer.InitState().String()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.InitSequence = initSeq
		j.InitScore = s.Optimizer.InitScore()
		j.CurrentSequence = initSeq
		j.CurrentScore = s.Optimizer.InitScore()
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "objective", job.Config.Objective.Name)
	jobsRunning.Inc()
	defer jobsRunning.Dec()

	start := time.Now()
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, start, progressDone)

	result, err := s.Run(ctx)
	close(progressDone)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		applyResult(jm, jobID, result)
		markJobCancelled(jm, jobID)
		return err
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	applyResult(jm, jobID, result)
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	jobsTotal.WithLabelValues(string(StateCompleted)).Inc()
	jobDuration.Observe(result.Elapsed.Seconds())

	if resultStore != nil {
		if err := resultStore.SaveResult(jobID, store.NewResult(jobID, job.Config, result)); err != nil {
			slog.Error("Failed to save result", "job_id", jobID, "error", err)
		}
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", result.Elapsed,
		"steps", result.Steps,
		"init_score", result.InitScore,
		"final_score", result.FinalScore,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:           jobID,
		State:           StateCompleted,
		Steps:           result.Steps,
		SuccessfulSteps: result.SuccessfulSteps,
		CurrentScore:    result.FinalScore,
		StepsPerSecond:  stepsPerSecond(result.Steps, result.Elapsed),
		Timestamp:       time.Now(),
	})

	return nil
}

// applyResult copies the final search state into the job.
func applyResult(jm *JobManager, jobID string, result *design.Result) {
	if result == nil {
		return
	}
	jm.UpdateJob(jobID, func(j *Job) {
		j.CurrentSequence = result.FinalSequence
		j.CurrentScore = result.FinalScore
		j.Steps = result.Steps
		j.SuccessfulSteps = result.SuccessfulSteps
	})
}

// monitorProgress periodically broadcasts progress events during a search
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
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

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:           jobID,
				State:           job.State,
				Steps:           job.Steps,
				SuccessfulSteps: job.SuccessfulSteps,
				CurrentScore:    job.CurrentScore,
				StepsPerSecond:  stepsPerSecond(job.Steps, time.Since(startTime)),
				Timestamp:       time.Now(),
			})
		}
	}
}

func stepsPerSecond(steps int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(steps) / elapsed.Seconds()
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jobsTotal.WithLabelValues(string(StateFailed)).Inc()
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateFailed, Timestamp: endTime})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	jobsTotal.WithLabelValues(string(StateCancelled)).Inc()
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateCancelled, Timestamp: endTime})
	slog.Info("Job cancelled", "job_id", jobID)
}
