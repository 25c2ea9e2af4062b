package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cwbudde/ribosearch/internal/config"
	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus mirrors the fields of the server's job status response.
type jobStatus struct {
	ID              string              `json:"id"`
	State           string              `json:"state"`
	Config          config.SearchConfig `json:"config"`
	InitSequence    string              `json:"initSequence"`
	InitScore       float64             `json:"initScore"`
	CurrentSequence string              `json:"currentSequence"`
	CurrentScore    float64             `json:"currentScore"`
	Steps           int                 `json:"steps"`
	SuccessfulSteps int                 `json:"successfulSteps"`
	Elapsed         float64             `json:"elapsed"`
	StepsPerSecond  float64             `json:"stepsPerSecond"`
	Error           string              `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listJobs(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("Job ID: %s\n", job.ID)
		fmt.Printf("  State: %s\n", job.State)
		fmt.Printf("  Objective: %s\n", job.Config.Objective.Name)
		fmt.Printf("  Decision: %s\n", job.Config.Decision)
		if job.Steps > 0 {
			fmt.Printf("  Score: %.4f -> %.4f\n", job.InitScore, job.CurrentScore)
		}
		fmt.Println()
	}

	return nil
}

func getJobStatus(url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Alphabet: %s\n", status.Config.Alphabet)
	fmt.Printf("  Decision: %s\n", status.Config.Decision)
	if status.Config.Decision == config.DecisionMetropolis {
		fmt.Printf("  Scale Factor: %v\n", status.Config.ScaleFactor)
	}
	fmt.Printf("  Objective: %s\n", status.Config.Objective.Name)
	fmt.Printf("  Max Successive Fails: %d\n", status.Config.MaxSuccessiveFails)
	fmt.Println()

	fmt.Println("Progress:")
	if status.InitSequence != "" {
		fmt.Printf("  Initial: %s (%.4f)\n", status.InitSequence, status.InitScore)
		fmt.Printf("  Current: %s (%.4f)\n", status.CurrentSequence, status.CurrentScore)
		fmt.Printf("  Improvement: %.4f\n", status.InitScore-status.CurrentScore)
	}
	fmt.Printf("  Steps: %d (%d accepted)\n", status.Steps, status.SuccessfulSteps)

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.StepsPerSecond > 0 {
		fmt.Printf("  Throughput: %.0f steps/sec\n", status.StepsPerSecond)
	}

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}

	return nil
}
