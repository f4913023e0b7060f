package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/validation"
	"evalgo.org/mycelium/models"
)

var (
	sporeFile     string
	sporeJSONLD   bool
	sporeVersion  string
	sporePinBases bool
)

var sporeCmd = &cobra.Command{
	Use:   "spore",
	Short: "Manage spores",
	Long: `Create and inspect spores.

A spore groups patches for integration, names the target graphs they
touch and the conformance level they must pass.`,
}

var sporeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a spore from a YAML file or JSON-LD document",
	Long: `Create a spore.

The YAML form:

  id: release-1
  label: People vocabulary
  conformance_level: moderate
  patches: [base-classes, add-person]
  targets: [people]
  base_versions:
    people: sha256:...

An empty conformance_level takes the configured default.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			req, err := loadSporeRequest(eng)
			if err != nil {
				return err
			}
			s, err := eng.CreateSpore(ctx, req)
			if err != nil {
				return err
			}
			return printSpore(s)
		})
	},
}

func loadSporeRequest(eng *engine.Engine) (engine.SporeRequest, error) {
	if !sporeJSONLD {
		var req engine.SporeRequest
		err := readYAML(sporeFile, &req)
		return req, err
	}

	data, err := os.ReadFile(sporeFile)
	if err != nil {
		return engine.SporeRequest{}, fmt.Errorf("failed to read %s: %w", sporeFile, err)
	}
	result, doc, err := eng.Documents().ValidateSporeDocument(data)
	if err != nil {
		return engine.SporeRequest{}, err
	}
	if !result.Valid {
		printDocumentErrors(result)
		return engine.SporeRequest{}, fmt.Errorf("%s is not a valid spore document", sporeFile)
	}
	return engine.SporeRequest{
		ID:           doc.ID,
		Label:        doc.Label,
		Description:  doc.Description,
		Version:      doc.Version,
		Level:        doc.Level,
		Patches:      doc.Patches,
		Targets:      doc.Targets,
		BaseVersions: doc.BaseVersions,
	}, nil
}

var sporeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			spores, err := eng.ListSpores(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(spores)
			}
			if len(spores) == 0 {
				fmt.Println("No spores found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLEVEL\tVERSION\tPATCHES\tTARGETS")
			for _, s := range spores {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					s.ID, s.Level, s.Version, len(s.Patches), strings.Join(s.Targets, ","))
			}
			return w.Flush()
		})
	},
}

var sporeShowCmd = &cobra.Command{
	Use:   "show <spore-id>",
	Short: "Show a spore",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			s, err := eng.GetSpore(ctx, args[0])
			if err != nil {
				return err
			}
			return printSpore(s)
		})
	},
}

var sporeValidateCmd = &cobra.Command{
	Use:   "validate <spore-id>",
	Short: "Run the integration checks of a spore without applying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			reports, err := eng.ValidateSpore(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				if err := printJSON(reports); err != nil {
					return err
				}
			} else {
				printReports(reports)
			}
			for _, r := range reports {
				if !r.Valid {
					return fmt.Errorf("spore %s failed validation", args[0])
				}
			}
			return nil
		})
	},
}

var sporeMigrateCmd = &cobra.Command{
	Use:   "migrate <spore-id>",
	Short: "Set the version of a spore",
	Long: `Set the version label of a spore.

With --pin-bases the spore's base versions are re-pinned to the current
version of each target.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			s, err := eng.MigrateSporeVersion(ctx, args[0], sporeVersion, sporePinBases)
			if err != nil {
				return err
			}
			return printSpore(s)
		})
	},
}

func printSpore(s *models.Spore) error {
	if outputJSON {
		return printJSON(s)
	}
	fmt.Printf("Spore %s\n", s.ID)
	if s.Label != "" {
		fmt.Printf("  Label:       %s\n", s.Label)
	}
	if s.Version != "" {
		fmt.Printf("  Version:     %s\n", s.Version)
	}
	fmt.Printf("  Conformance: %s\n", s.Level)
	fmt.Printf("  Patches:     %s\n", strings.Join(s.Patches, ", "))
	fmt.Printf("  Targets:     %s\n", strings.Join(s.Targets, ", "))
	if len(s.BaseVersions) > 0 {
		targets := make([]string, 0, len(s.BaseVersions))
		for t := range s.BaseVersions {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		fmt.Println("  Base versions:")
		for _, t := range targets {
			fmt.Printf("    %s: %s\n", t, s.BaseVersions[t])
		}
	}
	return nil
}

func printReports(reports []*validation.Report) {
	for _, r := range reports {
		mark := colorGreen + "✓" + colorReset
		if !r.Valid {
			mark = colorRed + "✗" + colorReset
		}
		fmt.Printf("%s %s on %s (%s)\n", mark, r.Spore, r.Target, r.Level)
		for _, m := range r.Messages {
			color := colorYellow
			if m.Level == validation.LevelError {
				color = colorRed
			}
			fmt.Printf("    %s%s%s\n", color, m.String(), colorReset)
		}
	}
}

func init() {
	sporeCreateCmd.Flags().StringVarP(&sporeFile, "file", "f", "", "spore definition file")
	sporeCreateCmd.Flags().BoolVar(&sporeJSONLD, "jsonld", false, "read the file as a JSON-LD spore document")
	_ = sporeCreateCmd.MarkFlagRequired("file")

	sporeMigrateCmd.Flags().StringVar(&sporeVersion, "version", "", "new spore version")
	sporeMigrateCmd.Flags().BoolVar(&sporePinBases, "pin-bases", false, "re-pin base versions to the current target versions")
	_ = sporeMigrateCmd.MarkFlagRequired("version")

	sporeCmd.AddCommand(sporeCreateCmd)
	sporeCmd.AddCommand(sporeListCmd)
	sporeCmd.AddCommand(sporeShowCmd)
	sporeCmd.AddCommand(sporeValidateCmd)
	sporeCmd.AddCommand(sporeMigrateCmd)
}
