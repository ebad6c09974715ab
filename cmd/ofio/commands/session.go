package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/aio"
	ofioconfig "github.com/marmos91/ofio/pkg/config"
	"github.com/marmos91/ofio/pkg/file"
	"github.com/marmos91/ofio/pkg/handle"
	"github.com/marmos91/ofio/pkg/handle/badger"
	"github.com/marmos91/ofio/pkg/handle/s3"
	"github.com/marmos91/ofio/pkg/metrics"
	"github.com/marmos91/ofio/pkg/metrics/prometheus"
)

// session is one backend with its handle service and pipeline engine.
type session struct {
	backend    handle.Backend
	svc        *handle.Service
	eng        *aio.Engine
	aioMetrics aio.Metrics
}

// openSession creates the configured backend and wires metrics into every
// layer. Metric collectors are created once per session so that engines
// built later (bench) share them.
func openSession(ctx context.Context, cfg *ofioconfig.Config) (*session, error) {
	backend, err := ofioconfig.CreateBackend(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}

	switch b := backend.(type) {
	case *s3.Backend:
		b.SetMetrics(prometheus.NewS3Metrics())
	case *badger.Backend:
		b.SetMetrics(prometheus.NewBadgerMetrics())
	}

	s := &session{
		backend:    backend,
		svc:        handle.New(backend, handle.WithMetrics(prometheus.NewStorageMetrics(backend.Name()))),
		aioMetrics: prometheus.NewAIOMetrics(),
	}

	engCfg, err := cfg.Pipeline.EngineConfig()
	if err != nil {
		_ = s.svc.Shutdown()
		return nil, err
	}
	if s.eng, err = s.engine(engCfg); err != nil {
		_ = s.svc.Shutdown()
		return nil, err
	}

	logger.DebugCtx(ctx, "session opened",
		logger.KeyBackend, backend.Name(),
		logger.KeyDepth, engCfg.Depth,
		logger.KeyChunkSize, engCfg.ChunkSize)
	return s, nil
}

// engine builds an additional engine over the session's service.
func (s *session) engine(cfg aio.Config) (*aio.Engine, error) {
	eng, err := aio.New(s.svc, cfg, aio.WithMetrics(s.aioMetrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline engine: %w", err)
	}
	return eng, nil
}

func (s *session) open(ctx context.Context, name string, mode handle.OpenMode) (*file.File, error) {
	return file.Open(ctx, s.svc, s.eng, name, mode)
}

func (s *session) close() {
	if err := s.svc.Shutdown(); err != nil {
		logger.Warn("backend shutdown error", logger.KeyBackend, s.backend.Name(), logger.KeyError, err)
	}
}

// withSession runs fn against a session built from the loaded configuration.
// With metrics enabled the metrics server runs for as long as fn does and
// checks the session's backend on /health/backend.
func withSession(fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(rt.ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if rt.cfg.Metrics.Enabled && metrics.IsEnabled() {
		ctx, stop := context.WithCancel(rt.ctx)
		defer stop()
		go func() {
			if err := metrics.Serve(ctx, rt.cfg.Metrics.Port, s.backend); err != nil {
				logger.Warn("metrics server stopped", logger.KeyError, err)
			}
		}()
	}
	return fn(rt.ctx, s)
}
