package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"alertcore/internal/alertstore"
	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/lifecycle"
	"alertcore/internal/logging"
	"alertcore/internal/metricsrc"
	"alertcore/internal/notify"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alerting service.
type Service struct {
	source     config.ConfigSource
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	store      alertstore.Store
	queue      *notify.Queue
	dispatcher *notify.Dispatcher
	router     *notify.Router
	manager    *lifecycle.Manager
	httpSrv    *http.Server
	drainKick  chan struct{}
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(cfg)
	if err != nil {
		closeLog()
		return nil, err
	}

	provider, err := metricsrc.New(cfg.Metrics)
	if err != nil {
		_ = store.Close()
		closeLog()
		return nil, err
	}

	service := &Service{
		source:    source,
		cfg:       cfg,
		logger:    logger,
		closeLog:  closeLog,
		store:     store,
		queue:     notify.NewQueue(),
		drainKick: make(chan struct{}, 1),
		clock:     clk,
	}

	senders := notify.BuildSenders(cfg.Notify)
	service.dispatcher = notify.NewDispatcher(store, service.queue, senders, cfg.Notify, clk, logger)
	service.router = notify.NewRouter(cfg.Notify.Routing, service.queue, clk, service.kickDrain)
	service.manager = lifecycle.NewManager(store, service.router, provider,
		cfg.Thresholds, cfg.Retention, cfg.Service.WindowHours, clk, logger)

	service.buildHTTPServer()
	return service, nil
}

// kickDrain requests an immediate queue drain outside the timer cadence.
// Params: none.
// Returns: none; duplicate requests coalesce.
func (s *Service) kickDrain() {
	select {
	case s.drainKick <- struct{}{}:
	default:
	}
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("ops server starting", "listen", s.cfg.Service.OpsListen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.startTicker(shutdownCtx, time.Duration(s.cfg.Service.MetricsCheckSec)*time.Second, "metrics check", func(tickCtx context.Context) error {
		return s.manager.CheckMetrics(tickCtx)
	})
	s.startTicker(shutdownCtx, time.Duration(s.cfg.Service.HealthCheckSec)*time.Second, "health check", func(tickCtx context.Context) error {
		return s.manager.CheckServiceHealth(tickCtx)
	})
	s.startTicker(shutdownCtx, time.Duration(s.cfg.Service.EscalationSweepSec)*time.Second, "escalation sweep", func(tickCtx context.Context) error {
		_, err := s.manager.EscalationSweep(tickCtx)
		return err
	})
	s.startTicker(shutdownCtx, time.Duration(s.cfg.Service.CleanupIntervalSec)*time.Second, "cleanup", func(tickCtx context.Context) error {
		_, err := s.manager.Cleanup(tickCtx)
		return err
	})

	drainInterval := time.Duration(s.cfg.Service.QueueDrainSec) * time.Second
	go func() {
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-ticker.C:
			case <-s.drainKick:
			}
			s.dispatcher.DrainDue(shutdownCtx)
		}
	}()

	if s.cfg.Service.ReloadEnabled {
		reloadInterval := time.Duration(s.cfg.Service.ReloadIntervalSec) * time.Second
		reloadTicker := time.NewTicker(reloadInterval)
		defer reloadTicker.Stop()
		go func() {
			for {
				select {
				case <-shutdownCtx.Done():
					return
				case <-reloadTicker.C:
					if err := s.reloadConfig(); err != nil {
						s.logger.Error("reload failed", "error", err.Error())
					}
				}
			}
		}()
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("ops server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// startTicker runs one named periodic task until shutdown.
// Params: shutdown context, interval, task name, and task body.
// Returns: none; task errors are logged, never fatal.
func (s *Service) startTicker(ctx context.Context, interval time.Duration, name string, task func(context.Context) error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error(name+" failed", "error", err.Error())
				}
			}
		}
	}()
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("ops server shutdown failed", "error", err.Error())
		firstErr = fmt.Errorf("ops shutdown: %w", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		if firstErr == nil {
			firstErr = fmt.Errorf("store close: %w", err)
		}
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// buildHTTPServer wires the ops endpoints.
// Params: none.
// Returns: server stored on the service.
func (s *Service) buildHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.HandleFunc("/admin/check", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			writer.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reqCtx := request.Context()
		if err := s.manager.CheckMetrics(reqCtx); err != nil {
			s.logger.Error("forced check: metrics", "error", err.Error())
		}
		if err := s.manager.CheckServiceHealth(reqCtx); err != nil {
			s.logger.Error("forced check: service health", "error", err.Error())
		}
		s.dispatcher.DrainDue(reqCtx)
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("check complete"))
	})
	mux.HandleFunc("/admin/summary", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet {
			writer.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		alerts, err := s.manager.MetricsSummary(request.Context())
		if err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			_, _ = writer.Write([]byte(err.Error()))
			return
		}
		notifications, err := s.manager.NotificationSummary(request.Context())
		if err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			_, _ = writer.Write([]byte(err.Error()))
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]any{
			"alerts":        alerts,
			"notifications": notifications,
		})
	})
	mux.HandleFunc("/admin/test-notification", func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			writer.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		channel := request.URL.Query().Get("channel")
		recipient := request.URL.Query().Get("recipient")
		if err := s.dispatcher.TestNotification(request.Context(), channel, recipient); err != nil {
			writer.WriteHeader(http.StatusBadGateway)
			_, _ = writer.Write([]byte(err.Error()))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("sent"))
	})

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Service.OpsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// reloadConfig reloads the snapshot and applies runtime-safe sections.
// Params: none.
// Returns: reload or validation error; contacts and thresholds apply live,
// channel transports and routing require restart.
func (s *Service) reloadConfig() error {
	nextCfg, err := config.LoadSnapshot(s.source)
	if err != nil {
		return err
	}
	if config.NormalizeServiceMode(nextCfg.Service.Mode) != config.NormalizeServiceMode(s.cfg.Service.Mode) {
		return fmt.Errorf("service.mode change requires restart")
	}

	s.dispatcher.SetContacts(nextCfg.Notify.Contacts)
	s.manager.SetThresholds(nextCfg.Thresholds)
	s.cfg = nextCfg
	s.logger.Info("configuration reloaded")
	return nil
}

// buildStore creates runtime alert store backend from config.
// Params: root config snapshot.
// Returns: selected store backend.
func buildStore(cfg config.Config) (alertstore.Store, error) {
	if config.NormalizeServiceMode(cfg.Service.Mode) == config.ServiceModeSingle {
		return alertstore.NewMemoryStore(), nil
	}
	return alertstore.NewNATSStore(cfg.Store)
}
