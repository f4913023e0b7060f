package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate [patch|spore] [file]",
	Short: "Validate a JSON-LD patch or spore document",
	Long: `Validate a JSON-LD document against the Mycelium vocabulary.

The document is checked for @context and @type, expanded with the
Mycelium context, and its fields validated. Nothing is stored.

Examples:
  mycelium validate patch add-person.jsonld
  mycelium validate spore release-1.jsonld --json`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	kind := args[0]
	filename := args[1]

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	validator := validation.New()

	var result *validation.Result
	switch kind {
	case "patch":
		result, _, err = validator.ValidatePatchDocument(data)
	case "spore":
		result, _, err = validator.ValidateSporeDocument(data)
	default:
		return fmt.Errorf("unknown document type: %s (use 'patch' or 'spore')", kind)
	}
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if outputJSON {
		if err := printJSON(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Println("✓ Document is valid")
	} else {
		printDocumentErrors(result)
	}

	if !result.Valid {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func printDocumentErrors(result *validation.Result) {
	fmt.Println("✗ Validation failed:")
	for _, e := range result.Errors {
		if e.Value != nil {
			fmt.Printf("  - %s: %s (value: %v)\n", e.Field, e.Message, e.Value)
		} else {
			fmt.Printf("  - %s: %s\n", e.Field, e.Message)
		}
	}
}
