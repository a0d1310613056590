package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/genricoloni/spotbar/internal/config"
	"github.com/genricoloni/spotbar/internal/domain"
	"github.com/genricoloni/spotbar/internal/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func testConfig(port int) config.Config {
	var cfg config.Config
	cfg.Port = port
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.BindRetryDelay = 10 * time.Millisecond
	cfg.Server.ReconnectDelay = 0
	cfg.Server.MaxDatagramSize = 2048
	return cfg
}

func udpPort(t *testing.T, addr net.Addr) int {
	t.Helper()
	udp, ok := addr.(*net.UDPAddr)
	require.True(t, ok, "unexpected address type %T", addr)
	return udp.Port
}

func TestBind_RetriesNextPort(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	taken := udpPort(t, busy.LocalAddr())

	s := NewServer(zap.NewNop(), testConfig(taken), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pc, err := s.Bind(ctx)
	require.NoError(t, err)
	defer pc.Close()

	got := udpPort(t, pc.LocalAddr())
	assert.GreaterOrEqual(t, got, taken+1)
	assert.Equal(t, pc.LocalAddr().String(), s.Addr().String())
}

func TestBind_CancelledWhileRetrying(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(udpPort(t, busy.LocalAddr()))
	cfg.Server.BindRetryDelay = time.Hour
	s := NewServer(zap.NewNop(), cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = s.Bind(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, s.Addr())
}

func TestBind_PortsExhausted(t *testing.T) {
	cfg := testConfig(highestPort + 1)
	s := NewServer(zap.NewNop(), cfg, nil)

	_, err := s.Bind(context.Background())
	assert.ErrorIs(t, err, ErrPortsExhausted)
}

// Payloads that aren't one of the six tags never reach the player.
func TestHandle_DropsInvalidPayloads(t *testing.T) {
	payloads := []string{"", "Next", `"next"`, `"Skip"`, `{"cmd":"Next"}`, "\xff\xfe"}

	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	player := mocks.NewMockPlayer(ctrl) // no calls expected

	s := NewServer(zap.NewNop(), testConfig(0), conn)
	s.player = player

	for _, p := range payloads {
		assert.NoError(t, s.Handle(context.Background(), []byte(p)))
	}
}

func TestHandle_Preconditions(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(conn *mocks.MockConnector, player *mocks.MockPlayer)
	}{
		{
			name: "Player stopped",
			setupMock: func(conn *mocks.MockConnector, player *mocks.MockPlayer) {
				player.EXPECT().IsAlive(gomock.Any()).Return(true)
				player.EXPECT().PlaybackStatus(gomock.Any()).Return(domain.StatusStopped, nil)
			},
		},
		{
			name: "Status read fails",
			setupMock: func(conn *mocks.MockConnector, player *mocks.MockPlayer) {
				player.EXPECT().IsAlive(gomock.Any()).Return(true)
				player.EXPECT().PlaybackStatus(gomock.Any()).Return(domain.StatusUnknown, errors.New("timeout"))
			},
		},
		{
			name: "Player gone, reacquire fails",
			setupMock: func(conn *mocks.MockConnector, player *mocks.MockPlayer) {
				player.EXPECT().IsAlive(gomock.Any()).Return(false)
				conn.EXPECT().Acquire(gomock.Any()).Return(nil, errors.New("not running"))
			},
		},
		{
			name: "Player gone, reacquire succeeds but command is still dropped",
			setupMock: func(conn *mocks.MockConnector, player *mocks.MockPlayer) {
				player.EXPECT().IsAlive(gomock.Any()).Return(false)
				conn.EXPECT().Acquire(gomock.Any()).Return(player, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			conn := mocks.NewMockConnector(ctrl)
			player := mocks.NewMockPlayer(ctrl)
			tt.setupMock(conn, player)

			s := NewServer(zap.NewNop(), testConfig(0), conn)
			s.player = player

			// Next is never expected, gomock fails the test if it is called
			assert.NoError(t, s.Handle(context.Background(), []byte(`"Next"`)))
		})
	}
}

func TestHandle_NoPlayerYet(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	player := mocks.NewMockPlayer(ctrl)
	conn.EXPECT().Acquire(gomock.Any()).Return(player, nil)

	s := NewServer(zap.NewNop(), testConfig(0), conn)
	require.NoError(t, s.Handle(context.Background(), []byte(`"Play"`)))
	assert.Same(t, player, s.player)
}

func TestHandle_Executes(t *testing.T) {
	for _, status := range []domain.PlaybackStatus{domain.StatusPlaying, domain.StatusPaused, domain.StatusUnknown} {
		t.Run(string(status), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			conn := mocks.NewMockConnector(ctrl)
			player := mocks.NewMockPlayer(ctrl)
			player.EXPECT().IsAlive(gomock.Any()).Return(true)
			player.EXPECT().PlaybackStatus(gomock.Any()).Return(status, nil)
			player.EXPECT().PlayPause(gomock.Any()).Return(nil).Times(1)

			s := NewServer(zap.NewNop(), testConfig(0), conn)
			s.player = player
			assert.NoError(t, s.Handle(context.Background(), []byte(`"PlayPause"`)))
		})
	}
}

func TestHandle_ExecutionFailure(t *testing.T) {
	busErr := errors.New("org.freedesktop.DBus.Error.NoReply")

	t.Run("Recovered by default", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockConnector(ctrl)
		player := mocks.NewMockPlayer(ctrl)
		player.EXPECT().IsAlive(gomock.Any()).Return(true)
		player.EXPECT().PlaybackStatus(gomock.Any()).Return(domain.StatusPlaying, nil)
		player.EXPECT().Next(gomock.Any()).Return(busErr)

		s := NewServer(zap.NewNop(), testConfig(0), conn)
		s.player = player

		assert.NoError(t, s.Handle(context.Background(), []byte(`"Next"`)))
		assert.Nil(t, s.player, "the failed handle is discarded")
	})

	t.Run("Fatal when enabled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockConnector(ctrl)
		player := mocks.NewMockPlayer(ctrl)
		player.EXPECT().IsAlive(gomock.Any()).Return(true)
		player.EXPECT().PlaybackStatus(gomock.Any()).Return(domain.StatusPlaying, nil)
		player.EXPECT().Next(gomock.Any()).Return(busErr)

		cfg := testConfig(0)
		cfg.Server.FatalCommandErrors = true
		s := NewServer(zap.NewNop(), cfg, conn)
		s.player = player

		err := s.Handle(context.Background(), []byte(`"Next"`))
		assert.ErrorIs(t, err, busErr)
		assert.ErrorContains(t, err, "failed to execute Next")
	})
}

func TestHandle_ReconnectDelayHonoursContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	conn.EXPECT().Acquire(gomock.Any()).Return(nil, errors.New("not running"))

	cfg := testConfig(0)
	cfg.Server.ReconnectDelay = time.Hour
	s := NewServer(zap.NewNop(), cfg, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.NoError(t, s.Handle(ctx, []byte(`"Next"`)))
	assert.Less(t, time.Since(start), 5*time.Second)
}

// A Next datagram sent while the player is live and playing produces
// exactly one Next call.
func TestRun_EndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	player := mocks.NewMockPlayer(ctrl)

	executed := make(chan struct{})
	conn.EXPECT().Acquire(gomock.Any()).Return(player, nil)
	player.EXPECT().IsAlive(gomock.Any()).Return(true)
	player.EXPECT().PlaybackStatus(gomock.Any()).Return(domain.StatusPlaying, nil)
	player.EXPECT().Next(gomock.Any()).DoAndReturn(func(context.Context) error {
		close(executed)
		return nil
	}).Times(1)
	conn.EXPECT().Close().Return(nil)

	s := NewServer(zap.NewNop(), testConfig(0), conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	// Garbage first: dropped without touching the player
	require.NoError(t, sendRaw(s.Addr().String(), []byte("garbage")))
	require.NoError(t, Send(ctx, s.Addr().String(), domain.CommandNext))

	select {
	case <-executed:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout: Next was not executed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout: server did not stop")
	}
}

func TestRun_FatalCommandStopsServer(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	player := mocks.NewMockPlayer(ctrl)

	conn.EXPECT().Acquire(gomock.Any()).Return(player, nil)
	player.EXPECT().IsAlive(gomock.Any()).Return(true)
	player.EXPECT().PlaybackStatus(gomock.Any()).Return(domain.StatusPaused, nil)
	player.EXPECT().Play(gomock.Any()).Return(errors.New("no reply"))
	conn.EXPECT().Close().Return(nil)

	cfg := testConfig(0)
	cfg.Server.FatalCommandErrors = true
	s := NewServer(zap.NewNop(), cfg, conn)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, Send(context.Background(), s.Addr().String(), domain.CommandPlay))

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "failed to execute Play")
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout: server kept running after a fatal command error")
	}
}

func sendRaw(addr string, payload []byte) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(payload)
	return err
}
