package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/logging"
	"evalgo.org/mycelium/models"
)

// Color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorOrange = "\033[38;5;208m"
)

// getScoreColor returns the appropriate color for a health score
func getScoreColor(score int) string {
	if score >= 90 {
		return colorGreen
	} else if score >= 70 {
		return colorYellow
	} else if score >= 50 {
		return colorOrange
	}
	return colorRed
}

// getSeverityColor returns the appropriate color for a severity level
func getSeverityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return colorRed
	case models.SeverityHigh:
		return colorOrange
	case models.SeverityMedium:
		return colorYellow
	case models.SeverityLow:
		return colorGreen
	default:
		return colorReset
	}
}

// newLogger builds the command logger. Console output goes to stderr so
// stdout stays clean for results.
func newLogger() (*slog.Logger, func(), error) {
	logCfg := cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, closer, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = closer.Close() }, nil
}

// openEngine opens the engine described by the loaded configuration.
func openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	logger, closeLog, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	eng, err := engine.New(ctx, cfg, engine.Options{Logger: logger})
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return eng, func() {
		if err := eng.Close(); err != nil {
			logger.Warn("engine close failed", "error", err)
		}
		closeLog()
	}, nil
}

// withEngine runs fn against a freshly opened engine.
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx := context.Background()
	eng, closeEngine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()
	return fn(ctx, eng)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readYAML decodes a YAML or JSON file into v.
func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
