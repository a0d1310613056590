package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/genricoloni/spotbar/internal/config"
	"github.com/genricoloni/spotbar/internal/domain"
	"github.com/genricoloni/spotbar/internal/engine"
	"github.com/genricoloni/spotbar/internal/mpris"
	"github.com/genricoloni/spotbar/internal/server"
	"github.com/genricoloni/spotbar/internal/status"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions wires every component. The caller supplies config.Config.
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	// Provide dependencies
	fx.Provide(
		newLogger,
		newSessions,
		newPoller,
		newServer,
		newEngine,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("spotbar", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts config.Options
	fs.IntVarP(&opts.Port, "port", "p", config.DefaultPort, "UDP port for bar commands (1024 < port < 63335)")
	fs.StringVarP(&opts.Action, "action", "a", "", "accepted for bar compatibility, ignored")
	fs.StringVarP(&opts.Path, "config", "c", "", "path to an optional YAML config file")
	fs.BoolVar(&opts.FatalCommandErrors, "fatal-command-errors", false, "exit when a command fails against a live player")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: spotbar [flags]")
		fmt.Fprintln(stderr, "       spotbar send <Next|Previous|Pause|PlayPause|Stop|Play> [flags]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	// Only an explicit --port beats the file and the environment
	if !fs.Changed("port") {
		opts.Port = 0
	}

	cfg, err := config.Load(opts)
	if err != nil {
		fmt.Fprintf(stderr, "spotbar: %v\n", err)
		return 1
	}

	if rest := fs.Args(); len(rest) > 0 {
		if rest[0] != "send" || len(rest) != 2 {
			fs.Usage()
			return 2
		}
		return sendCommand(cfg, rest[1], stderr)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(func() io.Writer { return stdout }),
		AppOptions,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(stderr, "spotbar: %v\n", err)
		return 1
	}

	// Wait for a signal or for the engine to give up
	sig := <-app.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(stderr, "spotbar: %v\n", err)
		return 1
	}
	return sig.ExitCode
}

// sendCommand sends one datagram to a running instance
func sendCommand(cfg config.Config, name string, stderr io.Writer) int {
	cmd, err := domain.ParseCommand(name)
	if err != nil {
		fmt.Fprintf(stderr, "spotbar: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Send(ctx, cfg.Addr(), cmd); err != nil {
		fmt.Fprintf(stderr, "spotbar: %v\n", err)
		return 1
	}
	return 0
}

// newLogger creates a new zap logger instance writing to stderr,
// stdout carries the status lines
func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Log.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// sessions gives each loop its own bus connection
type sessions struct {
	fx.Out

	Poller domain.Connector `name:"poller"`
	Server domain.Connector `name:"server"`
}

func newSessions(logger *zap.Logger, cfg config.Config) sessions {
	return sessions{
		Poller: mpris.NewSession(logger.Named("poller.mpris"), cfg),
		Server: mpris.NewSession(logger.Named("server.mpris"), cfg),
	}
}

type pollerParams struct {
	fx.In

	Logger *zap.Logger
	Config config.Config
	Conn   domain.Connector `name:"poller"`
	Out    io.Writer
}

func newPoller(p pollerParams) *status.Poller {
	return status.NewPoller(p.Logger.Named("poller"), p.Config, p.Conn, p.Out)
}

type serverParams struct {
	fx.In

	Logger *zap.Logger
	Config config.Config
	Conn   domain.Connector `name:"server"`
}

func newServer(p serverParams) *server.Server {
	return server.NewServer(p.Logger.Named("server"), p.Config, p.Conn)
}

func newEngine(logger *zap.Logger, shutdowner fx.Shutdowner, poller *status.Poller, srv *server.Server) *engine.Engine {
	return engine.NewEngine(logger.Named("engine"), shutdowner, map[string]domain.Loop{
		"poller": poller,
		"server": srv,
	})
}

// registerHooks sets up application lifecycle hooks
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, cfg config.Config, e *engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Spotbar Daemon Started",
				zap.String("player", cfg.Player.BusName),
				zap.Int("port", cfg.Port))
			return e.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return e.Stop(ctx)
		},
	})
}
