package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/graph"
)

var (
	graphFormat string
	graphOutput string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect, import and export target graphs",
}

var graphListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known graphs and their versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			ids, err := eng.ListGraphs(ctx)
			if err != nil {
				return err
			}
			versions := make(map[string]string, len(ids))
			for _, id := range ids {
				v, err := eng.GraphVersion(ctx, id)
				if err != nil {
					return err
				}
				versions[id] = v
			}
			if outputJSON {
				return printJSON(versions)
			}
			if len(ids) == 0 {
				fmt.Println("No graphs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GRAPH\tVERSION")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\n", id, versions[id])
			}
			return w.Flush()
		})
	},
}

var graphVersionCmd = &cobra.Command{
	Use:   "version <graph>",
	Short: "Print the current version token of a graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			v, err := eng.GraphVersion(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]string{"target": args[0], "version": v})
			}
			fmt.Println(v)
			return nil
		})
	},
}

var graphHistoryCmd = &cobra.Command{
	Use:   "history <graph>",
	Short: "Show the version chain of a graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			records, err := eng.VersionHistory(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("No version history")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tOPERATION\tPATCH\tNEXT\tTIME")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					r.Sequence, r.Operation, r.PatchID, shortVersion(r.Next), r.Timestamp.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		})
	},
}

var graphExportCmd = &cobra.Command{
	Use:   "export <graph>",
	Short: "Export a graph as N-Quads or JSON-LD",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := graph.ParseFormat(graphFormat)
		if err != nil {
			return err
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			data, err := eng.ExportGraph(ctx, args[0], format)
			if err != nil {
				return err
			}
			if graphOutput == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(graphOutput, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", graphOutput, err)
			}
			fmt.Fprintf(os.Stderr, "✓ Wrote %s (%d bytes)\n", graphOutput, len(data))
			return nil
		})
	},
}

var graphImportCmd = &cobra.Command{
	Use:   "import <graph> <file>",
	Short: "Replace a graph's contents from a file",
	Long: `Replace the contents of a graph.

The format is taken from --format, or from the file extension (.nq, .jsonld).
The import is recorded in the version chain like any other change.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := graphFormat
		if !cmd.Flags().Changed("format") {
			name = formatFromExt(args[1])
		}
		format, err := graph.ParseFormat(name)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			v, err := eng.ImportGraph(ctx, args[0], format, data)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]string{"target": args[0], "version": v})
			}
			fmt.Printf("✓ Imported %s\n", args[0])
			fmt.Printf("  Version: %s\n", v)
			return nil
		})
	},
}

var graphCheckCmd = &cobra.Command{
	Use:   "check <graph>",
	Short: "Run the conformance rules over a graph",
	Long: `Check a graph's classes and properties against the conformance rules.

New findings are recorded as violations; findings that already have an
open violation are reported but not recorded again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			findings, recorded, err := eng.CheckConformance(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]interface{}{"findings": findings, "recorded": recorded})
			}
			if len(findings) == 0 {
				fmt.Printf("✓ %s conforms\n", args[0])
				return nil
			}
			for _, f := range findings {
				fmt.Printf("  %s%-8s%s %s %s: %s\n",
					getSeverityColor(f.Severity), f.Severity, colorReset, f.Rule, f.Subject, f.Message)
			}
			fmt.Printf("\n%d findings, %d newly recorded\n", len(findings), len(recorded))
			return nil
		})
	},
}

var graphArchiveCmd = &cobra.Command{
	Use:   "archive <graph>",
	Short: "List the archived snapshots of a graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			versions, err := eng.ArchivedVersions(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(versions)
			}
			if len(versions) == 0 {
				fmt.Println("No archived snapshots")
				return nil
			}
			for _, v := range versions {
				fmt.Println(v)
			}
			return nil
		})
	},
}

// formatFromExt maps a file extension onto a graph format name.
func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonld", ".json":
		return string(graph.FormatJSONLD)
	default:
		return string(graph.FormatNQuads)
	}
}

// shortVersion trims a version token for table output.
func shortVersion(v string) string {
	const keep = 19 // "sha256:" plus 12 hex digits
	if len(v) <= keep {
		return v
	}
	return v[:keep]
}

func init() {
	graphExportCmd.Flags().StringVar(&graphFormat, "format", string(graph.FormatNQuads), "output format (nquads, jsonld)")
	graphExportCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "write to file instead of stdout")
	graphImportCmd.Flags().StringVar(&graphFormat, "format", string(graph.FormatNQuads), "input format (nquads, jsonld)")

	graphCmd.AddCommand(graphListCmd)
	graphCmd.AddCommand(graphVersionCmd)
	graphCmd.AddCommand(graphHistoryCmd)
	graphCmd.AddCommand(graphExportCmd)
	graphCmd.AddCommand(graphImportCmd)
	graphCmd.AddCommand(graphCheckCmd)
	graphCmd.AddCommand(graphArchiveCmd)
}
