package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zainal/disaster-siren/internal/api/web"
	"github.com/zainal/disaster-siren/internal/audio"
	"github.com/zainal/disaster-siren/internal/config"
	"github.com/zainal/disaster-siren/internal/coordinator"
	"github.com/zainal/disaster-siren/internal/domain/siren"
	"github.com/zainal/disaster-siren/internal/input"
	"github.com/zainal/disaster-siren/internal/logger"
	"github.com/zainal/disaster-siren/internal/playback"
	"github.com/zainal/disaster-siren/internal/registry"
	"github.com/zainal/disaster-siren/internal/service/led"
)

// Options controls the siren-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP API.
	ListenAddress string
}

const (
	// shutdownTimeout bounds the HTTP server drain on shutdown.
	shutdownTimeout = 5 * time.Second
	// readHeaderTimeout bounds slow request headers.
	readHeaderTimeout = 5 * time.Second
)

// Run assembles the appliance and blocks until the context is canceled.
// Commands from buttons, the web API and playback exits all flow through one
// ordered channel into the coordinator, which is the only writer of siren
// state. The phase is never persisted; every boot starts Idle.
//
//nolint:funlen,cyclop // Assembly is a flat sequence; splitting it would hide the wiring order.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "siren-server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	listenAddress := cfg.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	// Leftovers from a crashed run would hold the audio device; killing
	// foreign processes is left to the operator.
	if pids, err := playback.FindStalePlayers(cfg.PlayerCommand[0]); err != nil {
		logger.WarnKV(ctx, "Process scan failed", "error", err)
	} else if len(pids) > 0 {
		logger.WarnKV(ctx, "Stale player processes found", "player", cfg.PlayerCommand[0], "pids", pids)
	}

	reporter := coordinator.NewReporter()

	aggregator := input.New(cfg.CommandQueueSize, cfg.DebounceHold, cfg.SubmitTimeout, func() siren.Phase {
		return reporter.Current().Phase
	})

	manager := playback.NewManager(
		playback.NewExecRunner(),
		cfg.PlayerCommand,
		cfg.StopGracePeriod,
		func(cmd siren.Command) {
			aggregator.EnqueueEvent(ctx, cmd)
		},
	)

	// coord is assigned below, before any goroutine that can reach the
	// registry's active check is started.
	var coord *coordinator.Coordinator

	reg, err := registry.New(cfg.AudioDir, cfg.RegistryStateFile, func(id string) bool {
		return coord.IsModePlaying(id)
	})
	if err != nil {
		return fmt.Errorf("initialise registry: %w", err)
	}

	if err := reg.EnsureDefaultAssets(); err != nil {
		return fmt.Errorf("ensure default assets: %w", err)
	}

	coord = coordinator.New(playerAdapter{manager: manager}, reg, aggregator.Commands(), reporter)

	// GPIO access is a deployment collaborator: a platform edge listener
	// attaches to aggregator.HandleEdge for these pins, and a pin driver
	// replaces led.LogDriver below.
	logger.InfoKV(ctx, "Button pins configured",
		"start_stop_pin", cfg.StartStopPin, "cycle_mode_pin", cfg.CycleModePin, "status_led_pin", cfg.StatusLEDPin)

	coordDone := make(chan error, 1)

	go func() {
		coordDone <- coord.Run(ctx)
	}()

	go func() {
		if err := reg.WatchAssets(ctx); err != nil {
			logger.WarnKV(ctx, "Asset watcher stopped", "error", err)
		}
	}()

	snapshots, unsubscribe := reporter.Subscribe()
	defer unsubscribe()

	go led.Run(ctx, snapshots, led.LogDriver{})

	webServer := web.NewServer(aggregator, reporter, reg, audio.NewConverter(cfg.FFmpegPath), cfg.UploadsDir)

	//nolint:exhaustruct // Remaining timeouts use net/http defaults.
	httpServer := &http.Server{
		Addr:              listenAddress,
		Handler:           webServer.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""

	logger.InfoKV(ctx, "Siren server listening",
		"listen_address", listenAddress, "tls", useTLS, "audio_dir", cfg.AudioDir)

	// Done channel is closed after Shutdown finishes so we block until the
	// server has drained before waiting on the coordinator.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancelShutdown()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown", "error", err)
		}

		close(done)
	}()

	serveErr := serve(httpServer, lis, cfg)
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		// Stop the coordinator too; the deferred cancel has not run yet.
		cancel()
	}

	<-done

	// Wait for the coordinator to release the audio device.
	if err := <-coordDone; err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", serveErr)
	}

	logger.Info(ctx, "Siren server stopped")

	return nil
}

// serve runs the HTTP server over the listener, with TLS when configured.
func serve(s *http.Server, lis net.Listener, cfg *config.Config) error {
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		return s.ServeTLS(lis, cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	return s.Serve(lis)
}

// playerAdapter narrows the playback manager to the coordinator's Player
// seam.
type playerAdapter struct {
	manager *playback.Manager
}

// Start spawns a playback instance for the given asset.
//
//nolint:ireturn // The seam interface is the point of the adapter.
func (p playerAdapter) Start(ctx context.Context, assetPath string, loop bool, generation uint64) (coordinator.Playback, error) {
	handle, err := p.manager.Start(ctx, assetPath, loop, generation)
	if err != nil {
		return nil, err
	}

	return handle, nil
}

// Stop terminates the playback instance and waits for confirmation.
func (p playerAdapter) Stop(ctx context.Context, instance coordinator.Playback) error {
	handle, ok := instance.(*playback.Handle)
	if !ok {
		return nil
	}

	return p.manager.Stop(ctx, handle)
}
