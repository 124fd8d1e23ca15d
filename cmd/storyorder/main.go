package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/cli"
	"github.com/example/storyorder/internal/version"
	"github.com/example/storyorder/internal/wire"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "storyorder",
		Short:   "storyorder - reading order for game story archives",
		Version: version.String(),
		Long: `storyorder resolves raw story-script files of events and main story
chapters into a deterministic reading order, annotated with stage codes,
battle phases, recommended levels and word counts.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.Bootstrap(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	// Setup
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	// Resolution
	rootCmd.AddCommand(cli.ResolveCmd())
	rootCmd.AddCommand(cli.ChapterCmd())
	rootCmd.AddCommand(cli.EventsCmd())
	rootCmd.AddCommand(cli.BuildCmd())
	rootCmd.AddCommand(cli.ReportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	wire.Shutdown()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
