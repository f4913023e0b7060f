package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/integration"
	"evalgo.org/mycelium/internal/patch"
	"evalgo.org/mycelium/internal/storage"
)

// Manifest bundles the patches and spores of one integration so a whole
// change set can be loaded in a single command.
type Manifest struct {
	Patches []patch.CreateRequest `yaml:"patches"`
	Spores  []engine.SporeRequest `yaml:"spores"`
}

func loadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := readYAML(path, &m); err != nil {
		return nil, err
	}
	if len(m.Patches) == 0 && len(m.Spores) == 0 {
		return nil, fmt.Errorf("%s: manifest has no patches or spores", path)
	}
	for i, s := range m.Spores {
		if s.ID == "" {
			return nil, fmt.Errorf("%s: spore %d has no id", path, i)
		}
	}
	return &m, nil
}

var integrateSpores []string

var integrateCmd = &cobra.Command{
	Use:   "integrate [manifest.yaml...]",
	Short: "Integrate spores into their target graphs",
	Long: `Integrate one or more spores.

Each manifest lists patches and spores. Patches are created and submitted,
spores created, and every spore of every manifest integrated as one batch.
Records that already exist are reused. Stored spores can be added with
--spore.

  patches:
    - id: add-person
      type: structural-add
      target: people
      operations:
        - op: add
          triple: {subject: <http://example.org/Person>, predicate: <http://www.w3.org/1999/02/22-rdf-syntax-ns#type>, object: <http://www.w3.org/2002/07/owl#Class>}
  spores:
    - id: release-1
      patches: [add-person]
      targets: [people]

Examples:
  mycelium integrate release-1.yaml
  mycelium integrate --spore release-1 --spore release-2`,
	RunE: runIntegrate,
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	manifests := make([]*Manifest, 0, len(args))
	for _, path := range args {
		m, err := loadManifest(path)
		if err != nil {
			return err
		}
		manifests = append(manifests, m)
	}

	ids := append([]string(nil), integrateSpores...)
	for _, m := range manifests {
		for _, s := range m.Spores {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("nothing to integrate: pass a manifest or --spore")
	}

	return withEngine(func(ctx context.Context, eng *engine.Engine) error {
		for _, m := range manifests {
			if err := loadIntoEngine(ctx, eng, m); err != nil {
				return err
			}
		}

		res, err := eng.IntegrateSpores(ctx, ids)
		if res != nil {
			if perr := printResult(res); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		if res.Outcome != integration.OutcomeApplied {
			return fmt.Errorf("integration %s: %s", res.Outcome, res.Error)
		}
		return nil
	})
}

// loadIntoEngine creates and submits the manifest's patches, then creates
// its spores. Records whose id already exists are left as they are.
func loadIntoEngine(ctx context.Context, eng *engine.Engine, m *Manifest) error {
	for _, req := range m.Patches {
		if req.ID != "" {
			if _, err := eng.GetPatch(ctx, req.ID); err == nil {
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}
		p, err := eng.CreatePatch(ctx, req)
		if err != nil {
			return fmt.Errorf("patch %s: %w", req.ID, err)
		}
		if _, err := eng.SubmitPatch(ctx, p.ID); err != nil {
			return fmt.Errorf("patch %s: %w", p.ID, err)
		}
	}
	for _, req := range m.Spores {
		if _, err := eng.GetSpore(ctx, req.ID); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if _, err := eng.CreateSpore(ctx, req); err != nil {
			return fmt.Errorf("spore %s: %w", req.ID, err)
		}
	}
	return nil
}

func printResult(res *integration.Result) error {
	if outputJSON {
		return printJSON(res)
	}

	color := colorGreen
	switch res.Outcome {
	case integration.OutcomePartial:
		color = colorYellow
	case integration.OutcomeRejected:
		color = colorRed
	}
	fmt.Printf("Integration %s: %s%s%s\n", res.ID, color, res.Outcome, colorReset)
	if res.Error != "" {
		fmt.Printf("  Error: %s\n", res.Error)
	}
	if len(res.Order) > 0 {
		fmt.Printf("  Order: %s\n", strings.Join(res.Order, " → "))
	}
	for _, p := range res.Patches {
		mark := "·"
		switch p.State {
		case integration.StateApplied:
			mark = colorGreen + "✓" + colorReset
		case integration.StateFailed:
			mark = colorRed + "✗" + colorReset
		case integration.StateSkipped:
			mark = "-"
		}
		line := fmt.Sprintf("  %s %s (%s) %s", mark, p.ID, p.Target, p.State)
		if p.Version != "" {
			line += " → " + p.Version
		}
		if p.Error != "" {
			line += ": " + p.Error
		}
		fmt.Println(line)
	}
	for _, r := range res.Reports {
		if !r.Valid {
			printReports(res.Reports)
			break
		}
	}
	if len(res.Versions) > 0 {
		targets := make([]string, 0, len(res.Versions))
		for t := range res.Versions {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		fmt.Println("  Versions:")
		for _, t := range targets {
			fmt.Printf("    %s: %s\n", t, res.Versions[t])
		}
	}
	return nil
}

var planCmd = &cobra.Command{
	Use:   "plan <spore-id>...",
	Short: "Show the dependency waves of stored spores",
	Long: `Resolve the pending patches of the given spores into waves.

Patches in one wave do not depend on each other; each wave depends only on
earlier ones. Nothing is applied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			waves, err := eng.Plan(ctx, args)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]interface{}{"waves": waves})
			}
			if len(waves) == 0 {
				fmt.Println("No pending patches")
				return nil
			}
			for i, wave := range waves {
				fmt.Printf("Wave %d: %s\n", i+1, strings.Join(wave, ", "))
			}
			return nil
		})
	},
}

func init() {
	integrateCmd.Flags().StringSliceVar(&integrateSpores, "spore", nil, "stored spore to include (repeatable)")
}
