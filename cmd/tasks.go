package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/tasks"
	"github.com/KatnessChen/MaraMap-Backend/pkg/client"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and run the server's background jobs",
	Long:  `Background jobs such as jwks.prefetch keep the signing keys warm. These commands need a token the admin policy accepts.`,
}

var tasksListOpts struct {
	json bool
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show every registered job and its last outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		statuses, err := cli.ListTasks(cmd.Context())
		if err != nil {
			return logError(err, "", "failed to list tasks")
		}

		if tasksListOpts.json {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(statuses)
		}

		now := timeNow()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Job", "Every", "Runs", "Last", "Next", "Outcome"})
		for _, st := range statuses {
			every := st.Interval
			if every == "" {
				every = faint("manual")
			}
			name := bold(st.Name)
			if st.Running {
				name += " " + color.BlueString("(running)")
			}
			t.AppendRow(table.Row{
				name,
				every,
				st.Runs,
				relative(now, st.LastRun),
				relative(now, st.NextRun),
				outcome(st.LastResult),
			})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

// relative renders ts as "3m ago" or "in 12s" seen from now.
func relative(now, ts time.Time) string {
	if ts.IsZero() {
		return faint("-")
	}
	d := ts.Sub(now).Round(time.Second)
	if d < 0 {
		return (-d).String() + " ago"
	}
	return "in " + d.String()
}

func outcome(result string) string {
	switch result {
	case "":
		return faint("never ran")
	case "success":
		return greenCheck + " success"
	default:
		return redCross + " " + color.RedString(truncate(result, 60))
	}
}

var tasksTriggerOpts struct {
	wait    bool
	timeout time.Duration
}

var tasksTriggerCmd = &cobra.Command{
	Use:   "trigger JOB",
	Short: "Start a job now instead of waiting for its schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		var before int
		if tasksTriggerOpts.wait {
			st, err := findTask(cmd.Context(), cli, name)
			if err != nil {
				return logError(err, "", "failed to read job state")
			}
			before = st.Runs
		}

		if err := cli.TriggerTask(cmd.Context(), name); err != nil {
			return logError(err, "", fmt.Sprintf("failed to trigger '%s'", name))
		}
		log.Info().Msgf("%s '%s' started", greenCheck, bold(name))

		if !tasksTriggerOpts.wait {
			log.Info().Msgf("Follow it with '%s'", color.CyanString("maramap tasks logs "+name))
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), tasksTriggerOpts.timeout)
		defer cancel()
		st, err := waitForRun(ctx, cli, name, before)
		if err != nil {
			return logError(err, "", fmt.Sprintf("gave up waiting for '%s'", name))
		}
		if st.LastResult != "success" {
			log.Error().Msgf("%s '%s' %s", redCross, name, st.LastResult)
			return BeQuietError{}
		}
		log.Info().Msgf("%s '%s' finished", greenCheck, name)
		return nil
	},
}

func findTask(ctx context.Context, cli *client.Client, name string) (*tasks.TaskStatus, error) {
	statuses, err := cli.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		if statuses[i].Name == name {
			return &statuses[i], nil
		}
	}
	return nil, tasks.TaskNotFoundError{Name: name}
}

// waitForRun polls until the job has completed more than before runs.
func waitForRun(ctx context.Context, cli *client.Client, name string, before int) (*tasks.TaskStatus, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		st, err := findTask(ctx, cli, name)
		if err != nil {
			return nil, err
		}
		if st.Runs > before && !st.Running {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

var levelRank = []string{"debug", "info", "warn", "error"}

var tasksLogsOpts struct {
	level string
	tail  int
}

var tasksLogsCmd = &cobra.Command{
	Use:   "logs JOB",
	Short: "Print what a job logged in its recent runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minRank := slices.Index(levelRank, tasksLogsOpts.level)
		if minRank < 0 {
			return fmt.Errorf("unknown level '%s', expected one of %v", tasksLogsOpts.level, levelRank)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		entries, err := cli.GetTaskLogs(cmd.Context(), args[0])
		if err != nil {
			return logError(err, "", "failed to fetch job logs")
		}

		entries = filterLogs(entries, minRank, tasksLogsOpts.tail)
		if len(entries) == 0 {
			log.Info().Msgf("'%s' has not logged anything at %s or above", args[0], tasksLogsOpts.level)
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Time", "Level", "Message"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.Time.Local().Format("15:04:05.000"), levelLabel(e.Level), e.Message})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

// filterLogs drops entries below minRank and keeps at most the last tail entries.
// Unknown levels are always kept.
func filterLogs(entries []tasks.LogEntry, minRank, tail int) []tasks.LogEntry {
	var out []tasks.LogEntry
	for _, e := range entries {
		if rank := slices.Index(levelRank, e.Level); rank >= 0 && rank < minRank {
			continue
		}
		out = append(out, e)
	}
	if tail > 0 && len(out) > tail {
		out = out[len(out)-tail:]
	}
	return out
}

func levelLabel(level string) string {
	switch level {
	case "debug":
		return faint("DBG")
	case "info":
		return color.GreenString("INF")
	case "warn":
		return color.YellowString("WRN")
	case "error":
		return color.RedString("ERR")
	default:
		return level
	}
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksTriggerCmd, tasksLogsCmd)

	tasksListCmd.Flags().BoolVar(&tasksListOpts.json, "json", false, "Print the raw status list as JSON")

	tasksTriggerCmd.Flags().BoolVarP(&tasksTriggerOpts.wait, "wait", "w", false, "Block until the run completes and report its outcome")
	tasksTriggerCmd.Flags().DurationVar(&tasksTriggerOpts.timeout, "timeout", time.Minute, "How long --wait polls before giving up")

	tasksLogsCmd.Flags().StringVar(&tasksLogsOpts.level, "level", "debug", "Minimum level to show (debug, info, warn, error)")
	tasksLogsCmd.Flags().IntVarP(&tasksLogsOpts.tail, "tail", "n", 0, "Only show the last N entries")
}
