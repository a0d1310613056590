// Package mpris talks to an MPRIS media player over the D-Bus session bus.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/genricoloni/spotbar/internal/config"
	"github.com/genricoloni/spotbar/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const pingMethod = "org.freedesktop.DBus.Peer.Ping"

// ErrNotConnected is returned by Acquire when no session bus is reachable
var ErrNotConnected = errors.New("session bus not connected")

// Dialer opens a new session bus connection
type Dialer func() (DBusClient, error)

// Target is the player object every handle of a session is bound to
type Target struct {
	BusName     string
	ObjectPath  string
	Interface   string
	CallTimeout time.Duration
}

// Session owns one bus connection and hands out handles to the player.
// A Session belongs to a single loop and is not safe for concurrent use.
type Session struct {
	logger *zap.Logger
	dial   Dialer
	target Target
	client DBusClient
}

// NewSession creates a session that dials the real session bus lazily
func NewSession(logger *zap.Logger, cfg config.Config) *Session {
	return NewSessionWithDialer(logger, TargetFromConfig(cfg), func() (DBusClient, error) {
		return NewStdDBusClient()
	})
}

// NewSessionWithDialer creates a session with a custom bus dialer
func NewSessionWithDialer(logger *zap.Logger, target Target, dial Dialer) *Session {
	return &Session{
		logger: logger,
		dial:   dial,
		target: target,
	}
}

// TargetFromConfig extracts the player location from the configuration
func TargetFromConfig(cfg config.Config) Target {
	return Target{
		BusName:     cfg.Player.BusName,
		ObjectPath:  cfg.Player.ObjectPath,
		Interface:   cfg.Player.Interface,
		CallTimeout: cfg.Player.CallTimeout,
	}
}

// Acquire returns a fresh handle to the player once it answered a ping.
// The bus connection is reused while it stays connected and re-dialed
// otherwise. Acquire never retries; the caller picks the cadence.
func (s *Session) Acquire(ctx context.Context) (domain.Player, error) {
	if s.client != nil && !s.client.Connected() {
		s.logger.Debug("Session bus connection lost, redialing")
		if err := s.client.Close(); err != nil {
			s.logger.Debug("Failed to close stale bus connection", zap.Error(err))
		}
		s.client = nil
	}

	if s.client == nil {
		client, err := s.dial()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		s.client = client
	}

	h := &Handle{client: s.client, target: s.target}
	if err := h.ping(ctx); err != nil {
		return nil, fmt.Errorf("player %s not reachable: %w", s.target.BusName, err)
	}

	s.logger.Debug("Player handle acquired", zap.String("player", s.target.BusName))
	return h, nil
}

// Close closes the bus connection, if any
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// Handle is a live reference to the player object.
// It is replaced, never repaired, once IsAlive fails.
type Handle struct {
	client DBusClient
	target Target
}

// IsAlive pings the player again
func (h *Handle) IsAlive(ctx context.Context) bool {
	return h.ping(ctx) == nil
}

// Metadata reads and parses the Metadata property
func (h *Handle) Metadata(ctx context.Context) (domain.TrackInfo, error) {
	v, err := h.property(ctx, "Metadata")
	if err != nil {
		return domain.TrackInfo{}, fmt.Errorf("failed to get metadata: %w", err)
	}
	return parseMetadata(v)
}

// PlaybackStatus reads the PlaybackStatus property
func (h *Handle) PlaybackStatus(ctx context.Context) (domain.PlaybackStatus, error) {
	v, err := h.property(ctx, "PlaybackStatus")
	if err != nil {
		return domain.StatusUnknown, fmt.Errorf("failed to get playback status: %w", err)
	}

	status, ok := v.Value().(string)
	if !ok {
		return domain.StatusUnknown, fmt.Errorf("invalid playback status format: %T", v.Value())
	}
	return domain.ParsePlaybackStatus(status), nil
}

func (h *Handle) Next(ctx context.Context) error      { return h.control(ctx, "Next") }
func (h *Handle) Previous(ctx context.Context) error  { return h.control(ctx, "Previous") }
func (h *Handle) Pause(ctx context.Context) error     { return h.control(ctx, "Pause") }
func (h *Handle) PlayPause(ctx context.Context) error { return h.control(ctx, "PlayPause") }
func (h *Handle) Stop(ctx context.Context) error      { return h.control(ctx, "Stop") }
func (h *Handle) Play(ctx context.Context) error      { return h.control(ctx, "Play") }

func (h *Handle) ping(ctx context.Context) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	return h.client.Call(ctx, h.target.BusName, h.target.ObjectPath, pingMethod)
}

func (h *Handle) control(ctx context.Context, member string) error {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	method := h.target.Interface + "." + member
	if err := h.client.Call(ctx, h.target.BusName, h.target.ObjectPath, method); err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	return nil
}

func (h *Handle) property(ctx context.Context, name string) (dbus.Variant, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	return h.client.GetProperty(ctx, h.target.BusName, h.target.ObjectPath, h.target.Interface+"."+name)
}

func (h *Handle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.target.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.target.CallTimeout)
}
