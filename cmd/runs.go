package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/optbench/internal/store"
	"github.com/spf13/cobra"
)

var (
	keepLast       int
	olderThanDays  int
	forceClean     bool
	showTrace      bool
	traceAlgorithm string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored experiment runs",
	Long: `Manage stored experiment runs including listing, inspecting, comparing and
cleaning old runs.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored runs",
	Long:  `Display all runs with metadata including run ID, experiment, timestamp, best result and size on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			return listRuns(st, os.Stdout)
		})
	},
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the report and results of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			return showRun(st, args[0], os.Stdout)
		})
	},
}

var compareRunsCmd = &cobra.Command{
	Use:   "compare <before-id> <after-id>",
	Short: "Compare the results of two runs of the same experiment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			return compareRuns(st, args[0], args[1], os.Stdout)
		})
	},
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old runs",
	Long: `Delete old runs based on retention policy.
You can specify how many runs to keep or delete runs older than N days.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			return cleanRuns(st, os.Stdin, os.Stdout)
		})
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(compareRunsCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	showRunCmd.Flags().BoolVar(&showTrace, "trace", false, "Print the recorded trace")
	showRunCmd.Flags().StringVar(&traceAlgorithm, "algorithm", "", "Only print trace entries of this algorithm")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func withStore(cmd *cobra.Command, fn func(store.Store) error) error {
	st, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(st)
}

func listRuns(st store.Store, out io.Writer) error {
	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	// Display runs in a table
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tEXPERIMENT\tSEED\tTIMESTAMP\tRESULTS\tBEST\tSIZE")
	fmt.Fprintln(w, "------\t----------\t----\t---------\t-------\t----\t----")

	for _, info := range infos {
		size, err := getDirSize(filepath.Join(dataDir, "runs", info.ID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		// Truncate run ID for display
		displayID := info.ID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s %s\t%s\n",
			displayID,
			info.Experiment,
			info.Seed,
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Results,
			info.BestAlgorithm,
			strconv.FormatFloat(info.BestValue, 'g', 6, 64),
			sizeStr,
		)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
	return nil
}

func showRun(st store.Store, id string, out io.Writer) error {
	run, err := st.LoadRun(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run: %s\n", run.ID)
	fmt.Fprintf(out, "Experiment: %s (seed %d)\n", run.Experiment, run.Seed)
	fmt.Fprintf(out, "Started: %s, took %s\n", run.Timestamp.Format(time.RFC3339), run.Duration.Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nPROBLEM\tALGORITHM\tTRIAL\tITERATIONS\tVALUE\tTRAIN %\tTEST %\tTIME")
	for _, res := range run.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%.3f\t%.3f\t%s\n",
			res.Problem,
			res.Algorithm,
			res.Trial,
			res.Iterations,
			strconv.FormatFloat(res.Value, 'g', 6, 64),
			res.TrainAccuracy,
			res.TestAccuracy,
			res.Duration.Round(time.Microsecond),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if run.Report != "" {
		fmt.Fprintf(out, "\n%s", run.Report)
	}

	if !showTrace {
		return nil
	}
	entries, err := store.ReadTrace(dataDir, id)
	if err != nil {
		return err
	}

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nPROBLEM\tALGORITHM\tTRIAL\tITERATION\tVALUE")
	for _, e := range store.Filter(entries, "", traceAlgorithm) {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", e.Problem, e.Algorithm, e.Trial, e.Iteration, strconv.FormatFloat(e.Value, 'g', 6, 64))
	}
	return w.Flush()
}

func compareRuns(st store.Store, beforeID, afterID string, out io.Writer) error {
	before, err := st.LoadRun(beforeID)
	if err != nil {
		return err
	}
	after, err := st.LoadRun(afterID)
	if err != nil {
		return err
	}

	deltas, err := store.Compare(before, after)
	if err != nil {
		return err
	}
	if len(deltas) == 0 {
		fmt.Fprintln(out, "No common results.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBLEM\tALGORITHM\tTRIAL\tBEFORE\tAFTER\tCHANGE")
	for _, d := range deltas {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%+g\n",
			d.Problem,
			d.Algorithm,
			d.Trial,
			strconv.FormatFloat(d.Before, 'g', 6, 64),
			strconv.FormatFloat(d.After, 'g', 6, 64),
			d.Change(),
		)
	}
	return w.Flush()
}

func cleanRuns(st store.Store, in io.Reader, out io.Writer) error {
	// Validate flags
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	infos, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays)
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No runs to delete.")
		return nil
	}

	fmt.Fprintf(out, "The following %d run(s) will be deleted:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  %s  %s  %s\n", info.ID, info.Experiment, info.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Fprint(out, "\nProceed? [y/N]: ")
		var response string
		fmt.Fscanln(in, &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		err := st.DeleteRun(info.ID)
		if err == nil {
			err = store.DeleteTrace(dataDir, info.ID)
		}
		if err != nil {
			slog.Error("Failed to delete run", "run_id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.ID)
			deleted++
		}
	}

	fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion determines which runs should be deleted based on the
// retention policy
func selectRunsForDeletion(infos []store.RunInfo, keepLast int, olderThanDays int) []store.RunInfo {
	var toDelete []store.RunInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.ID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		// newest first
		sorted := append([]store.RunInfo(nil), infos...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		})
		for _, info := range sorted[keepLast:] {
			if !selected[info.ID] {
				toDelete = append(toDelete, info)
				selected[info.ID] = true
			}
		}
	}

	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
