package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/config"
	"github.com/example/storyorder/internal/db"
	"github.com/example/storyorder/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the storyorder environment and game data",
		Long: `Health check for storyorder.

Validates:
- Configuration file (.storyorder/config.yaml)
- Data directory of the configured locale
- Game tables (stage, activity, zone, word count)
- Report database

Examples:
  storyorder doctor              # Run full health check
  storyorder doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()
			dir, _ := os.Getwd()

			results := []CheckResult{
				checkConfig(dir),
				checkDataPath(cfg.LocaleRoot()),
				checkTables(func(w io.Writer) (bool, error) {
					return wire.OrderAdapterWithOutput(w).Doctor(commandContext(cmd))
				}),
				checkDatabase(),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				printResults(cmd.OutOrStdout(), results, hasErrors)
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

func printResults(out io.Writer, results []CheckResult, hasErrors bool) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Check              Status")
	fmt.Fprintln(out, "─────────────────────────")
	for _, r := range results {
		fmt.Fprintf(out, "%-18s %s\n", r.Name, r.Status)
	}
	fmt.Fprintln(out)

	hasDetails := false
	for _, r := range results {
		if r.Status != "✓" && r.Details != "" {
			if !hasDetails {
				fmt.Fprintln(out, "Details:")
				hasDetails = true
			}
			fmt.Fprintf(out, "\n%s:\n%s\n", r.Name, r.Details)
		}
	}

	if hasErrors {
		fmt.Fprintln(out, "\n⚠ Issues found. Run 'storyorder init --data-path <dir>' to point at the data.")
	} else {
		fmt.Fprintln(out, "All checks passed.")
	}
}

// checkConfig warns when no config file exists and defaults are in use
func checkConfig(dir string) CheckResult {
	if dir == "" {
		return CheckResult{Name: "Config", Status: "⚠", Details: "  Cannot get working directory"}
	}
	if !config.Exists(dir) {
		return CheckResult{
			Name:    "Config",
			Status:  "⚠",
			Details: "  No .storyorder/config.yaml, using defaults\n  Run: storyorder init",
		}
	}
	return CheckResult{Name: "Config", Status: "✓"}
}

// checkDataPath validates the locale data directory
func checkDataPath(root string) CheckResult {
	info, err := os.Stat(root)
	if err != nil {
		return CheckResult{Name: "Data path", Status: "✗", Details: fmt.Sprintf("  %s not found", root)}
	}
	if !info.IsDir() {
		return CheckResult{Name: "Data path", Status: "✗", Details: fmt.Sprintf("  %s is not a directory", root)}
	}
	return CheckResult{Name: "Data path", Status: "✓"}
}

// checkTables loads the game tables. A missing table is only a warning.
func checkTables(load func(io.Writer) (bool, error)) CheckResult {
	var buf bytes.Buffer
	ok, err := load(&buf)
	if err != nil {
		return CheckResult{Name: "Game tables", Status: "✗", Details: "  " + err.Error()}
	}
	if !ok {
		return CheckResult{Name: "Game tables", Status: "⚠", Details: strings.TrimRight(buf.String(), "\n")}
	}
	return CheckResult{Name: "Game tables", Status: "✓"}
}

// checkDatabase validates the report database schema
func checkDatabase() CheckResult {
	conn, err := db.GetDB()
	if err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: "  " + err.Error()}
	}
	v, err := db.Version(conn)
	if err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: "  " + err.Error()}
	}
	if v != db.SchemaVersion {
		return CheckResult{
			Name:    "Database",
			Status:  "⚠",
			Details: fmt.Sprintf("  Schema version %d, expected %d", v, db.SchemaVersion),
		}
	}
	return CheckResult{Name: "Database", Status: "✓"}
}
