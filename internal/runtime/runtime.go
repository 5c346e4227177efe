package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loqalabs/loqa-tts/internal/audio"
	"github.com/loqalabs/loqa-tts/internal/bus"
	"github.com/loqalabs/loqa-tts/internal/capability"
	"github.com/loqalabs/loqa-tts/internal/clip"
	"github.com/loqalabs/loqa-tts/internal/config"
	"github.com/loqalabs/loqa-tts/internal/httpapi"
	"github.com/loqalabs/loqa-tts/internal/natsserver"
	"github.com/loqalabs/loqa-tts/internal/prompt"
	"github.com/loqalabs/loqa-tts/internal/speech"
	"github.com/loqalabs/loqa-tts/internal/tts"
)

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	api           *httpapi.Server
	apiListener   net.Listener
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	natsServer    *natsserver.EmbeddedServer
	busClient     *bus.Client
	speechService *speech.Service
	announcer     *capability.Announcer
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start wires every component and blocks until ctx is cancelled or a
// listener fails.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	rules, err := prompt.LoadAndValidate(r.cfg.Pronunciation.RulesPath)
	if err != nil {
		r.shutdownTelemetry()
		return err
	}

	synth, err := tts.New(ctx, r.cfg.TTS, r.cfg.Audio)
	if err != nil {
		r.shutdownTelemetry()
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	gen := speech.NewGenerator(synth, speech.Options{
		DefaultVoice: r.cfg.TTS.DefaultVoice,
		DefaultPitch: r.cfg.TTS.DefaultPitch,
		DefaultStyle: r.cfg.TTS.DefaultStyle,
		Format: audio.Format{
			SampleRate:    r.cfg.Audio.SampleRate,
			Channels:      r.cfg.Audio.Channels,
			BitsPerSample: r.cfg.Audio.BitsPerSample,
		},
		Rules: rules,
	}, r.logger)
	timeout := time.Duration(r.cfg.TTS.TimeoutMS) * time.Millisecond

	clips := clip.New(r.cfg.Clips, r.logger)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		clips.Run(ctx)
	}()

	if r.cfg.Bus.Enabled {
		if err := r.startBus(ctx, gen, timeout); err != nil {
			cancel()
			r.stop()
			return err
		}
	}

	errCh := make(chan error, 2)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		cancel()
		r.stop()
		return fmt.Errorf("failed to bind http api on %s: %w", addr, err)
	}
	r.apiListener = ln
	r.api = httpapi.New(ctx, gen, clips, httpapi.Options{Timeout: timeout, Ready: r.isReady}, r.logger)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.api.Serve(ln); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("tts_mode", r.cfg.TTS.Mode),
		slog.Int("global_rules", len(rules)),
		slog.Bool("bus", r.cfg.Bus.Enabled))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.Error("runtime listener failed", slog.String("error", runErr.Error()))
	}

	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	cancel()
	r.stop()
	return runErr
}

func (r *Runtime) startBus(ctx context.Context, gen *speech.Generator, timeout time.Duration) error {
	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		ns, err := natsserver.Start(natsserver.Options{Port: busCfg.Port}, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		r.natsServer = ns
		busCfg.Servers = []string{ns.ClientURL()}
	}

	client, err := bus.Connect(ctx, busCfg, r.cfg.RuntimeName, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = client

	r.speechService = speech.NewService(ctx, client, gen, timeout, r.logger)
	if err := r.speechService.Start(); err != nil {
		return fmt.Errorf("failed to start speech service: %w", err)
	}

	nodeID := r.cfg.Node.ID
	if nodeID == "" {
		nodeID = r.cfg.RuntimeName + "-" + uuid.NewString()[:8]
	}
	r.announcer = capability.NewAnnouncer(nodeID, r.cfg.Node.Role,
		[]capability.Capability{capability.Speech(r.cfg.TTS.Mode, r.cfg.TTS.Model)},
		time.Duration(r.cfg.Node.HeartbeatIntervalMS)*time.Millisecond, client, r.logger)
	if err := r.announcer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capability announcer: %w", err)
	}
	return nil
}

// stop tears down in reverse start order. Safe on a partial start.
func (r *Runtime) stop() {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if r.api != nil {
		if err := r.api.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	// Shutdown only closes listeners the server has already picked up, so a
	// Serve goroutine that has not started yet would otherwise block forever.
	if r.apiListener != nil {
		_ = r.apiListener.Close()
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.announcer != nil {
		r.announcer.Close()
	}
	if r.speechService != nil {
		r.speechService.Close()
	}
	if r.busClient != nil {
		r.busClient.Close()
	}
	if r.natsServer != nil {
		r.natsServer.Shutdown()
	}
	r.wg.Wait()
	r.shutdownTelemetry()
}

func (r *Runtime) shutdownTelemetry() {
	if r.tracerClose == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracerClose(ctx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}
	r.tracerClose = nil
}

func (r *Runtime) isReady() bool {
	if !r.ready.Load() {
		return false
	}
	if r.cfg.Bus.Enabled {
		return r.busClient.Healthy() && r.speechService != nil && r.speechService.Healthy()
	}
	return true
}
