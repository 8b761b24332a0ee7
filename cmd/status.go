package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	statusReport bool
	statusCancel bool
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
	statusCmd.Flags().BoolVar(&statusReport, "report", false, "Print the report of a completed job")
	statusCmd.Flags().BoolVar(&statusCancel, "cancel", false, "Cancel the job")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(os.Stdout, serverURL+"/api/v1/jobs")
	}

	jobID := args[0]
	jobURL := fmt.Sprintf("%s/api/v1/jobs/%s", serverURL, jobID)
	switch {
	case statusCancel:
		return cancelJob(os.Stdout, jobURL, jobID)
	case statusReport:
		return getReport(os.Stdout, jobURL+"/report", jobID)
	default:
		return getJobStatus(os.Stdout, jobURL+"/status", jobID)
	}
}

func listJobs(out io.Writer, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job["id"])
		fmt.Fprintf(out, "  State: %s\n", job["state"])
		fmt.Fprintf(out, "  Experiment: %s (seed %v)\n", job["experiment"], job["seed"])
		if alg, ok := job["algorithm"].(string); ok && alg != "" {
			fmt.Fprintf(out, "  Progress: %s %v/%v\n", alg, job["iteration"], job["total"])
		}
		fmt.Fprintln(out)
	}

	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
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

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(out, "Job: %s\n", status["id"])
	fmt.Fprintf(out, "State: %s\n", status["state"])
	fmt.Fprintf(out, "Experiment: %s (seed %v)\n", status["experiment"], status["seed"])
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	if alg, ok := status["algorithm"].(string); ok && alg != "" {
		fmt.Fprintf(out, "  Algorithm: %s", alg)
		if trial, ok := status["trial"].(float64); ok && trial > 0 {
			fmt.Fprintf(out, " (trial %.0f)", trial)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Iteration: %v/%v\n", status["iteration"], status["total"])
		fmt.Fprintf(out, "  Value: %v\n", status["value"])
	}
	fmt.Fprintf(out, "  Steps: %v\n", status["steps"])

	if elapsed, ok := status["elapsed"].(float64); ok {
		fmt.Fprintf(out, "  Elapsed: %s\n", time.Duration(elapsed*float64(time.Second)).Round(time.Millisecond))
	}

	if runID, ok := status["runId"].(string); ok && runID != "" {
		fmt.Fprintf(out, "  Run: %s\n", runID)
	}

	if msg, ok := status["error"].(string); ok && msg != "" {
		fmt.Fprintf(out, "\nError: %s\n", msg)
	}

	return nil
}

func getReport(out io.Writer, url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		_, err := io.Copy(out, resp.Body)
		return err
	case http.StatusNotFound:
		return fmt.Errorf("job not found: %s", jobID)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}
}

func cancelJob(out io.Writer, url, jobID string) error {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Fprintf(out, "Cancelling job %s\n", jobID)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job not found: %s", jobID)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}
}
