// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import (
	"context"
	"errors"
)

// ErrDataNotFound is returned when a table or story directory is absent.
var ErrDataNotFound = errors.New("data not found")

// GameDataSource defines the secondary port for reading the game data tree.
// Table methods return the raw JSON bytes; parsing is the core's job.
type GameDataSource interface {
	// Tables
	StageTable(ctx context.Context) ([]byte, error)
	ActivityTable(ctx context.Context) ([]byte, error)
	ZoneTable(ctx context.Context) ([]byte, error)
	WordcountManifest(ctx context.Context) ([]byte, error)

	// Story listings, as paths relative to the story root
	StoryEventIDs(ctx context.Context) ([]string, error)
	EventStoryFiles(ctx context.Context, eventID string) ([]string, error)
	MainStoryFiles(ctx context.Context) ([]string, error)

	// Root returns the locale directory being read.
	Root() string
}
