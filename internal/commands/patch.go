package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

var (
	patchFile   string
	patchJSONLD bool
	patchSubmit bool
	patchTarget string
	patchStatus string
	patchSpore  string
	rebaseBase  string
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Manage patches",
	Long: `Create, inspect and apply patches.

A patch is a list of triple additions and removals against one target
graph, authored against a base version of that graph. Patches start as
drafts and must be submitted before they can be applied.`,
}

var patchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a patch from a YAML file or JSON-LD document",
	Long: `Create a draft patch.

The YAML form:

  id: add-person
  type: composite
  target: people
  version: 1.0.0
  depends_on: [base-classes]
  operations:
    - op: add
      triple:
        subject: <http://example.org/Person>
        predicate: <http://www.w3.org/2000/01/rdf-schema#label>
        object: "Person"

Terms use N-Triples notation; a quoted value is a plain literal. An empty
base_version takes the target's current version.

Examples:
  mycelium patch create -f add-person.yaml --submit
  mycelium patch create -f add-person.jsonld --jsonld`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			req, err := loadPatchRequest(eng)
			if err != nil {
				return err
			}
			p, err := eng.CreatePatch(ctx, req)
			if err != nil {
				return err
			}
			if patchSubmit {
				if p, err = eng.SubmitPatch(ctx, p.ID); err != nil {
					return err
				}
			}
			return printPatch(p)
		})
	},
}

func loadPatchRequest(eng *engine.Engine) (patch.CreateRequest, error) {
	if !patchJSONLD {
		var req patch.CreateRequest
		err := readYAML(patchFile, &req)
		return req, err
	}

	data, err := os.ReadFile(patchFile)
	if err != nil {
		return patch.CreateRequest{}, fmt.Errorf("failed to read %s: %w", patchFile, err)
	}
	result, doc, err := eng.Documents().ValidatePatchDocument(data)
	if err != nil {
		return patch.CreateRequest{}, err
	}
	if !result.Valid {
		printDocumentErrors(result)
		return patch.CreateRequest{}, fmt.Errorf("%s is not a valid patch document", patchFile)
	}
	return patch.CreateRequest{
		ID:          doc.ID,
		Kind:        doc.Kind,
		Target:      doc.Target,
		Label:       doc.Label,
		Description: doc.Description,
		Version:     doc.Version,
		Operations:  doc.Operations,
		BaseVersion: doc.BaseVersion,
		DependsOn:   doc.DependsOn,
		Spore:       doc.Spore,
	}, nil
}

var patchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := storage.PatchFilter{Target: patchTarget, Spore: patchSpore}
		if patchStatus != "" {
			status, err := models.ParsePatchStatus(patchStatus)
			if err != nil {
				return err
			}
			filter.Status = status
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			patches, err := eng.ListPatches(ctx, filter)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(patches)
			}
			if len(patches) == 0 {
				fmt.Println("No patches found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTARGET\tTYPE\tSTATUS\tOPS\tDEPENDS ON")
			for _, p := range patches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					p.ID, p.Target, p.Kind, p.Status, len(p.Operations), strings.Join(p.DependsOn, ","))
			}
			return w.Flush()
		})
	},
}

var patchShowCmd = &cobra.Command{
	Use:   "show <patch-id>",
	Short: "Show a patch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			p, err := eng.GetPatch(ctx, args[0])
			if err != nil {
				return err
			}
			return printPatch(p)
		})
	},
}

var patchSubmitCmd = &cobra.Command{
	Use:   "submit <patch-id>",
	Short: "Move a draft patch to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			p, err := eng.SubmitPatch(ctx, args[0])
			if err != nil {
				return err
			}
			return printPatch(p)
		})
	},
}

var patchApplyCmd = &cobra.Command{
	Use:   "apply <patch-id>",
	Short: "Apply one pending patch to its target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPatchChange(args[0], false)
	},
}

var patchRollbackCmd = &cobra.Command{
	Use:   "rollback <patch-id>",
	Short: "Revert an applied patch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPatchChange(args[0], true)
	},
}

func runPatchChange(id string, rollback bool) error {
	return withEngine(func(ctx context.Context, eng *engine.Engine) error {
		run := eng.ApplyPatch
		if rollback {
			run = eng.RollbackPatch
		}
		version, err := run(ctx, id)
		if err != nil {
			return err
		}
		p, err := eng.GetPatch(ctx, id)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(map[string]interface{}{"patch": p, "version": version})
		}
		fmt.Printf("✓ Patch %s is %s\n", p.ID, p.Status)
		fmt.Printf("  Target:  %s\n", p.Target)
		fmt.Printf("  Version: %s\n", version)
		return nil
	})
}

var patchRebaseCmd = &cobra.Command{
	Use:   "rebase <patch-id>",
	Short: "Move a patch onto a new base version",
	Long: `Rebase a patch onto a new base version of its target.

A failed or reverted patch goes back to pending
with the new base. Without --base the target's current version is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			p, err := eng.RebasePatch(ctx, args[0], rebaseBase)
			if err != nil {
				return err
			}
			return printPatch(p)
		})
	},
}

func printPatch(p *models.Patch) error {
	if outputJSON {
		return printJSON(p)
	}
	fmt.Printf("Patch %s\n", p.ID)
	fmt.Printf("  Target:       %s\n", p.Target)
	fmt.Printf("  Type:         %s\n", p.Kind)
	fmt.Printf("  Status:       %s\n", p.Status)
	fmt.Printf("  Base version: %s\n", p.BaseVersion)
	if p.Version != "" {
		fmt.Printf("  Version:      %s\n", p.Version)
	}
	if p.Spore != "" {
		fmt.Printf("  Spore:        %s\n", p.Spore)
	}
	if len(p.DependsOn) > 0 {
		fmt.Printf("  Depends on:   %s\n", strings.Join(p.DependsOn, ", "))
	}
	fmt.Printf("  Operations:   %d\n", len(p.Operations))
	for _, op := range p.Operations {
		fmt.Printf("    %-6s %s\n", op.Kind, op.Triple)
	}
	return nil
}

func init() {
	patchCreateCmd.Flags().StringVarP(&patchFile, "file", "f", "", "patch definition file")
	patchCreateCmd.Flags().BoolVar(&patchJSONLD, "jsonld", false, "read the file as a JSON-LD patch document")
	patchCreateCmd.Flags().BoolVar(&patchSubmit, "submit", false, "submit the patch after creating it")
	_ = patchCreateCmd.MarkFlagRequired("file")

	patchListCmd.Flags().StringVar(&patchTarget, "target", "", "filter by target graph")
	patchListCmd.Flags().StringVar(&patchStatus, "status", "", "filter by status (draft, pending, applied, failed, reverted)")
	patchListCmd.Flags().StringVar(&patchSpore, "spore", "", "filter by owning spore")

	patchRebaseCmd.Flags().StringVar(&rebaseBase, "base", "", "new base version (default: current target version)")

	patchCmd.AddCommand(patchCreateCmd)
	patchCmd.AddCommand(patchListCmd)
	patchCmd.AddCommand(patchShowCmd)
	patchCmd.AddCommand(patchSubmitCmd)
	patchCmd.AddCommand(patchApplyCmd)
	patchCmd.AddCommand(patchRollbackCmd)
	patchCmd.AddCommand(patchRebaseCmd)
}
