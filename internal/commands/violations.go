package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

var (
	violationTarget     string
	violationSeverity   string
	violationStatus     string
	violationRef        string
	violationFile       string
	violationResolution string
)

var violationsCmd = &cobra.Command{
	Use:     "violations",
	Aliases: []string{"violation"},
	Short:   "Inspect and manage conformance violations",
}

var violationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List violations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := storage.ViolationFilter{Target: violationTarget, RefID: violationRef}
		if violationSeverity != "" {
			sev, err := models.ParseSeverity(violationSeverity)
			if err != nil {
				return err
			}
			filter.Severity = sev
		}
		if violationStatus != "" {
			status := models.ViolationStatus(violationStatus)
			if !status.Valid() {
				return fmt.Errorf("unknown status %q (use open or resolved)", violationStatus)
			}
			filter.Status = status
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			violations, err := eng.QueryViolations(ctx, filter)
			if err != nil {
				return err
			}
			return printViolations(violations)
		})
	},
}

var violationsRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a violation from a YAML file",
	Long: `Record a manual violation.

  target: people
  ref: {kind: patch, id: add-person}
  label: Person has no comment
  type: missing-comment
  severity: low`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var req conformance.RecordRequest
		if err := readYAML(violationFile, &req); err != nil {
			return err
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			id, err := eng.RecordViolation(ctx, req)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]string{"id": id})
			}
			fmt.Printf("✓ Recorded violation %s\n", id)
			return nil
		})
	},
}

var violationsResolveCmd = &cobra.Command{
	Use:   "resolve <violation-id>",
	Short: "Mark a violation resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			changed, err := eng.ResolveViolation(ctx, args[0], violationResolution)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]interface{}{"id": args[0], "changed": changed})
			}
			if changed {
				fmt.Printf("✓ Resolved violation %s\n", args[0])
			} else {
				fmt.Printf("Violation %s was already resolved\n", args[0])
			}
			return nil
		})
	},
}

var violationsHistoryCmd = &cobra.Command{
	Use:   "history <target>",
	Short: "List every violation of a graph, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			violations, err := eng.GetViolationHistory(ctx, args[0])
			if err != nil {
				return err
			}
			return printViolations(violations)
		})
	},
}

var violationsStatsCmd = &cobra.Command{
	Use:   "stats <target>",
	Short: "Summarize the violations of a graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			stats, err := eng.ViolationStatistics(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(stats)
			}

			fmt.Printf("Conformance: %s\n", stats.Target)
			fmt.Printf("%s\n", strings.Repeat("=", 13+len(stats.Target)))
			fmt.Printf("Health score: %s%d/100%s\n", getScoreColor(stats.HealthScore), stats.HealthScore, colorReset)
			fmt.Printf("Violations:   %d total, %d open, %d resolved\n", stats.Total, stats.Unresolved, stats.Resolved)
			if stats.Total > 0 {
				fmt.Println("\nBy severity:")
				for i := len(models.Severities) - 1; i >= 0; i-- {
					sev := models.Severities[i]
					if n := stats.BySeverity[sev]; n > 0 {
						fmt.Printf("  %s%-8s%s %d\n", getSeverityColor(sev), sev, colorReset, n)
					}
				}
			}
			return nil
		})
	},
}

func printViolations(violations []*models.Violation) error {
	if outputJSON {
		return printJSON(violations)
	}
	if len(violations) == 0 {
		fmt.Println("No violations found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTARGET\tREF\tSEVERITY\tSTATUS\tLABEL")
	for _, v := range violations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s%s\t%s\t%s\n",
			v.ID, v.Target, v.Ref, getSeverityColor(v.Severity), v.Severity, colorReset, v.Status, v.Label)
	}
	return w.Flush()
}

func init() {
	violationsListCmd.Flags().StringVar(&violationTarget, "target", "", "filter by target graph")
	violationsListCmd.Flags().StringVar(&violationSeverity, "severity", "", "filter by severity (low, medium, high, critical)")
	violationsListCmd.Flags().StringVar(&violationStatus, "status", "", "filter by status (open, resolved)")
	violationsListCmd.Flags().StringVar(&violationRef, "ref", "", "filter by referenced spore, patch or graph id")

	violationsRecordCmd.Flags().StringVarP(&violationFile, "file", "f", "", "violation definition file")
	_ = violationsRecordCmd.MarkFlagRequired("file")

	violationsResolveCmd.Flags().StringVar(&violationResolution, "resolution", "", "how the violation was resolved")

	violationsCmd.AddCommand(violationsListCmd)
	violationsCmd.AddCommand(violationsRecordCmd)
	violationsCmd.AddCommand(violationsResolveCmd)
	violationsCmd.AddCommand(violationsHistoryCmd)
	violationsCmd.AddCommand(violationsStatsCmd)
}
