// Package server receives playback commands from the bar over UDP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/genricoloni/spotbar/internal/config"
	"github.com/genricoloni/spotbar/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const highestPort = 65535

// ErrPortsExhausted is returned when no port up to 65535 could be bound
var ErrPortsExhausted = errors.New("no free port left to bind")

// Server listens for command datagrams and forwards them to the player.
// The player handle is owned by the goroutine running Run.
type Server struct {
	logger         *zap.Logger
	conn           domain.Connector
	host           string
	port           int
	retryDelay     time.Duration
	reconnectDelay time.Duration
	maxDatagram    int
	fatal          bool

	player domain.Player

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a command server. Nothing is bound until Run.
func NewServer(logger *zap.Logger, cfg config.Config, conn domain.Connector) *Server {
	return &Server{
		logger:         logger,
		conn:           conn,
		host:           cfg.Server.Host,
		port:           cfg.Port,
		retryDelay:     cfg.Server.BindRetryDelay,
		reconnectDelay: cfg.Server.ReconnectDelay,
		maxDatagram:    cfg.Server.MaxDatagramSize,
		fatal:          cfg.Server.FatalCommandErrors,
	}
}

// Bind opens a UDP socket on the configured port, moving to the next port
// after each failure. Several bars on a multi-monitor setup each run their
// own instance, so the first one takes the configured port and the others
// climb from there.
func (s *Server) Bind(ctx context.Context) (net.PacketConn, error) {
	var lc net.ListenConfig
	port := s.port

	for {
		addr := net.JoinHostPort(s.host, strconv.Itoa(port))
		pc, err := lc.ListenPacket(ctx, "udp", addr)
		if err == nil {
			s.mu.Lock()
			s.addr = pc.LocalAddr()
			s.mu.Unlock()

			s.logger.Info("Command server listening",
				zap.String("addr", pc.LocalAddr().String()),
				zap.Int("requestedPort", s.port))
			return pc, nil
		}

		s.logger.Warn("Failed to bind command port, trying the next one",
			zap.String("addr", addr),
			zap.Error(err))

		port++
		if port > highestPort {
			return nil, fmt.Errorf("%w: started at %d", ErrPortsExhausted, s.port)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

// Addr returns the bound address, or nil before Bind succeeded
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run binds the socket and serves datagrams until ctx is cancelled.
// It only returns an error when binding fails, the socket breaks, or a
// command fails while fatal command errors are enabled.
func (s *Server) Run(ctx context.Context) (err error) {
	defer func() {
		if closeErr := s.conn.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close player connection: %w", closeErr))
		}
	}()

	pc, err := s.Bind(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		if closeErr := pc.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("failed to close socket: %w", closeErr))
		}
	}()

	// Unblock ReadFrom on shutdown
	stop := context.AfterFunc(ctx, func() { _ = pc.Close() })
	defer stop()

	s.acquire(ctx)
	return s.Serve(ctx, pc)
}

// Serve reads datagrams from pc and handles them one at a time
func (s *Server) Serve(ctx context.Context, pc net.PacketConn) error {
	buf := make([]byte, s.maxDatagram)

	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("Command server stopped")
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		s.logger.Debug("Datagram received",
			zap.Stringer("from", from),
			zap.Int("bytes", n))

		if err := s.Handle(ctx, buf[:n]); err != nil {
			return err
		}
	}
}

// Handle decodes one payload, checks the player can take it and runs it.
// Invalid payloads and unmet preconditions drop the command silently.
func (s *Server) Handle(ctx context.Context, payload []byte) error {
	cmd, err := domain.DecodeCommand(payload)
	if err != nil {
		s.logger.Debug("Dropping undecodable datagram", zap.Error(err))
		return nil
	}

	if s.player == nil || !s.player.IsAlive(ctx) {
		s.acquire(ctx)
		s.logger.Debug("Player was not reachable, dropping command", zap.Stringer("command", cmd))
		s.wait(ctx, s.reconnectDelay)
		return nil
	}

	status, err := s.player.PlaybackStatus(ctx)
	if err != nil {
		s.logger.Debug("Failed to read playback status, dropping command",
			zap.Stringer("command", cmd),
			zap.Error(err))
		return nil
	}
	if status == domain.StatusStopped {
		s.logger.Debug("Player is stopped, dropping command", zap.Stringer("command", cmd))
		return nil
	}

	if err := cmd.Execute(ctx, s.player); err != nil {
		if s.fatal {
			return fmt.Errorf("failed to execute %s: %w", cmd, err)
		}
		s.logger.Error("Failed to execute command",
			zap.Stringer("command", cmd),
			zap.Error(err))
		// Force a fresh handle for the next command
		s.player = nil
		return nil
	}

	s.logger.Debug("Command executed", zap.Stringer("command", cmd))
	return nil
}

func (s *Server) acquire(ctx context.Context) {
	player, err := s.conn.Acquire(ctx)
	if err != nil {
		s.logger.Debug("Player unavailable", zap.Error(err))
		s.player = nil
		return
	}
	s.player = player
}

func (s *Server) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
