package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/wire"
)

// ResolveCmd returns the resolve command
func ResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [event-id]",
		Short: "Print the reading order of an event",
		Long: `Resolve the story files of one event into reading order.

The order comes from the word-count manifest when the event has one, from
file indexes for mini stories, from the stage unlock graph otherwise, and
falls back to file names for anything left over.

Examples:
  storyorder resolve act9d0
  storyorder resolve act15mini`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := wire.OrderAdapterWithOutput(cmd.OutOrStdout()).Resolve(commandContext(cmd), args[0])
			return err
		},
	}
}

// ChapterCmd returns the chapter command
func ChapterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapter [number]",
		Short: "Print the reading order of a main story chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseChapter(args[0])
			if err != nil {
				return err
			}
			_, err = wire.OrderAdapterWithOutput(cmd.OutOrStdout()).Chapter(commandContext(cmd), n)
			return err
		},
	}
}

func parseChapter(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid chapter number %q", s)
	}
	return n, nil
}
