// Package status periodically renders the player state as one bar line.
package status

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/genricoloni/spotbar/internal/config"
	"github.com/genricoloni/spotbar/internal/domain"
	"go.uber.org/zap"
)

// DisplayState is the last line emitted to the bar
type DisplayState struct {
	Song string
	Icon string
}

// Poller polls the player and prints a line whenever the display changes.
// All state is owned by the goroutine running Run.
type Poller struct {
	logger   *zap.Logger
	conn     domain.Connector
	out      io.Writer
	icons    config.Icons
	interval time.Duration
	fallback string

	player domain.Player
	state  DisplayState
}

// NewPoller creates a poller writing status lines to out
func NewPoller(logger *zap.Logger, cfg config.Config, conn domain.Connector, out io.Writer) *Poller {
	return &Poller{
		logger:   logger,
		conn:     conn,
		out:      out,
		icons:    cfg.Icons,
		interval: cfg.Poller.Interval,
		fallback: cfg.Poller.ParseFallback,
	}
}

// Run sleeps for the poll interval, then ticks, until ctx is cancelled.
// It closes the poller's connector on return.
func (p *Poller) Run(ctx context.Context) error {
	defer func() {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("Failed to close player connection", zap.Error(err))
		}
	}()

	p.logger.Info("Status poller started", zap.Duration("interval", p.interval))
	p.reconnect(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Status poller stopped")
			return nil
		case <-timer.C:
			p.Tick(ctx)
			timer.Reset(p.interval)
		}
	}
}

// Tick performs one poll and emits at most one line
func (p *Poller) Tick(ctx context.Context) {
	if p.player == nil || !p.player.IsAlive(ctx) {
		p.reconnect(ctx)

		// Edge-triggered: only the first disconnected tick prints
		if p.state.Icon != p.icons.Stopped {
			p.state.Icon = p.icons.Stopped
			p.emit(p.stoppedLine())
		}
		return
	}

	song := p.fallback
	if track, err := p.player.Metadata(ctx); err != nil {
		p.logger.Debug("Failed to read metadata", zap.Error(err))
	} else {
		song = track.String()
	}

	icon := p.icons.Stopped
	status, err := p.player.PlaybackStatus(ctx)
	switch {
	case err != nil:
		p.logger.Debug("Failed to read playback status", zap.Error(err))
	case status == domain.StatusPlaying:
		icon = p.icons.Playing
	case status == domain.StatusPaused:
		icon = p.icons.Paused
	}

	next := DisplayState{Song: song, Icon: icon}
	if next == p.state {
		return
	}
	p.state = next

	if icon == p.icons.Stopped {
		p.emit(p.stoppedLine())
		return
	}
	p.emit(fmt.Sprintf("%s %s %s", p.icons.Note, icon, song))
}

// State returns the last emitted display state
func (p *Poller) State() DisplayState {
	return p.state
}

func (p *Poller) reconnect(ctx context.Context) {
	player, err := p.conn.Acquire(ctx)
	if err != nil {
		p.logger.Debug("Player unavailable", zap.Error(err))
		p.player = nil
		return
	}
	p.logger.Info("Connected to player")
	p.player = player
}

func (p *Poller) stoppedLine() string {
	return p.icons.App + " " + p.icons.Stopped
}

func (p *Poller) emit(line string) {
	if _, err := fmt.Fprintln(p.out, line); err != nil {
		p.logger.Warn("Failed to write status line", zap.Error(err))
	}
}
