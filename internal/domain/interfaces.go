package domain

import "context"

// Player is a live handle to the media player's control interface.
// A Player that failed IsAlive must be discarded and re-acquired.
//
//go:generate mockgen -destination=mocks/domain_mock.go -package=mocks github.com/genricoloni/spotbar/internal/domain Player,Connector
type Player interface {
	// IsAlive probes the player with a no-op round trip
	IsAlive(ctx context.Context) bool

	// Metadata returns the track currently loaded in the player
	Metadata(ctx context.Context) (TrackInfo, error)

	// PlaybackStatus returns the player's current playback status
	PlaybackStatus(ctx context.Context) (PlaybackStatus, error)

	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Pause(ctx context.Context) error
	PlayPause(ctx context.Context) error
	Stop(ctx context.Context) error
	Play(ctx context.Context) error
}

// Connector hands out Player handles. Each loop owns its own Connector,
// they are never shared.
type Connector interface {
	// Acquire opens a handle and probes it once.
	// It returns a nil Player and an error when the player is unreachable.
	Acquire(ctx context.Context) (Player, error)

	// Close releases the underlying bus connection
	Close() error
}

// Loop is a long-running task supervised by the engine
type Loop interface {
	// Run blocks until ctx is cancelled or the loop fails
	Run(ctx context.Context) error
}
