// Package cli provides CLI commands for the storyorder application.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/wire"
)

// Bootstrap applies the global flags before any service is created.
// Should be called once at CLI startup in PersistentPreRun.
func Bootstrap(verbose bool) {
	wire.SetVerbose(verbose)
}

// commandContext returns the context cobra was executed with.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
