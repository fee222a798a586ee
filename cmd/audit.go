package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/pkg/client"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Look at who ingested what",
	Long:  `Reads the ingestion trail a server keeps. Needs an admin token and an auditor that retains entries (memory).`,
}

var auditLogOpts struct {
	client.ListAuditsOpts
	failedOnly bool
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent ingestion attempts, newest first",
	Example: `  maramap audit log --source-id fb_123
  maramap audit log --failed -n 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		entries, correlation, err := cli.ListAudits(cmd.Context(), auditLogOpts.ListAuditsOpts)
		if err != nil {
			return logError(err, correlation, "failed to fetch audit log")
		}
		if auditLogOpts.failedOnly {
			entries = failedEntries(entries)
		}
		if len(entries) == 0 {
			log.Info().Msg("No matching audit entries")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"When", "Request", "Caller", "Source", "Result", "Post"})

		var created, duplicate, failed int
		for _, e := range entries {
			caller := faint("anonymous")
			if e.Principal != nil {
				caller = truncate(e.Principal.Subject, 36)
			}

			var result string
			switch {
			case !e.Success:
				failed++
				result = redCross + " " + truncate(e.Error, 48)
			case e.Outcome == core.OutcomeCreated:
				created++
				result = greenCheck + " created"
			default:
				duplicate++
				result = faint("= " + string(e.Outcome))
			}

			t.AppendRow(table.Row{
				e.Time.Local().Format(time.DateTime),
				faint(e.ID),
				caller,
				truncate(e.SourceID, 32),
				result,
				e.PostID,
			})
		}
		t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d new, %d dup, %d failed", created, duplicate, failed), ""})

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func failedEntries(entries []core.AuditEntry) []core.AuditEntry {
	var out []core.AuditEntry
	for _, e := range entries {
		if !e.Success {
			out = append(out, e)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditLogCmd)

	flags := auditLogCmd.Flags()
	flags.UintVarP(&auditLogOpts.Limit, "limit", "n", 25, "Maximum entries the server returns")
	flags.StringVar(&auditLogOpts.SourceID, "source-id", "", "Only attempts for this source id")
	flags.StringVar(&auditLogOpts.CorrelationID, "correlation-id", "", "Only the attempt with this request id")
	flags.StringVar(&auditLogOpts.Subject, "sub", "", "Only attempts by this caller")
	flags.BoolVar(&auditLogOpts.failedOnly, "failed", false, "Hide successful attempts")
}
