// Package runtime assembles the sidecar: telemetry, transcription
// engine, transcript store, optional bus, and the HTTP surface. All
// startup failures happen here, before the service accepts connections.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/voicemark/sidecar/internal/audio"
	"github.com/voicemark/sidecar/internal/bus"
	"github.com/voicemark/sidecar/internal/config"
	"github.com/voicemark/sidecar/internal/natsserver"
	"github.com/voicemark/sidecar/internal/server"
	"github.com/voicemark/sidecar/internal/store"
	"github.com/voicemark/sidecar/internal/stt"
	"github.com/voicemark/sidecar/internal/work"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	conv := audio.NewConverter(r.cfg.Audio.FFmpegPath, r.cfg.Stream.SampleRate)
	if err := conv.Check(); err != nil {
		return err
	}

	engine, err := stt.New(r.cfg.STT, r.cfg.Stream.SampleRate, r.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize transcription engine: %w", err)
	}
	defer engine.Close()

	st, err := store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	defer st.Close()

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		busClient, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
	}

	archiver, err := audio.NewArchiver(r.cfg.Audio.ArchiveDir, r.cfg.Stream.SampleRate, r.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize audio archive: %w", err)
	}

	pool := work.NewPool(r.cfg.Stream.Workers)
	srv := server.New(r.cfg, r.logger, engine, pool, st, busClient, conv, archiver)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	r.logger.Info("sidecar started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("sidecar stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}
