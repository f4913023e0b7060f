package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/internal/version"
)

var (
	cfgFile    string
	cfg        *config.Config
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "mycelium",
	Short: "Versioned patch integration for RDF graphs",
	Long: `Mycelium applies patches to versioned RDF graphs.

Patches carry triple additions and removals against a base version.
Spores group patches for integration: every spore is validated against
its targets, patches are ordered by their dependencies, and each graph
records the version chain its patches produced.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = version.Version
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, text)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(sporeCmd)
	rootCmd.AddCommand(integrateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(violationsCmd)
	rootCmd.AddCommand(graphCmd)

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "%s" .Version}}
`)
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	flags := rootCmd.PersistentFlags()
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format, _ := flags.GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if outputJSON {
			return printJSON(info)
		}
		fmt.Println(info.String())

		if cmd.Flag("verbose").Changed {
			fmt.Printf("\nDetails:\n")
			fmt.Printf("  Version:    %s\n", info.Version)
			fmt.Printf("  Git Commit: %s\n", info.GitCommit)
			fmt.Printf("  Built:      %s\n", info.BuildTime)
			fmt.Printf("  Go Version: %s\n", info.GoVersion)
			fmt.Printf("  Platform:   %s\n", info.Platform)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "verbose version output")
}
