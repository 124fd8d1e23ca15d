package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/config"
	"github.com/example/storyorder/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var dataPath, locale, dbPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the storyorder config and report database",
		Long: `Write .storyorder/config.yaml in the current directory and initialize the
report database (default ~/.storyorder/storyorder.db).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			out := cmd.OutOrStdout()

			if config.Exists(dir) && !force {
				return fmt.Errorf("config already exists in %s (use --force to overwrite)", dir)
			}

			cfg := config.Default()
			if dataPath != "" {
				cfg.DataPath = dataPath
			}
			if locale != "" {
				cfg.Locale = locale
			}
			cfg.DBPath = dbPath
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.SaveConfig(dir, cfg); err != nil {
				return err
			}
			fmt.Fprintln(out, "✓ Config written to .storyorder/config.yaml")

			path, err := cfg.ResolveDBPath()
			if err != nil {
				return fmt.Errorf("failed to get database path: %w", err)
			}
			conn, err := db.Open(path)
			if err != nil {
				return err
			}
			conn.Close()
			fmt.Fprintf(out, "✓ Database initialized at %s\n", path)

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  storyorder doctor")
			fmt.Fprintln(out, "  storyorder events")

			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data-path", "", "Root of the story data (default: "+config.DefaultDataPath+")")
	cmd.Flags().StringVar(&locale, "locale", "", "Data locale (default: "+config.DefaultLocale+")")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "Report database file (default: ~/.storyorder/storyorder.db)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}
