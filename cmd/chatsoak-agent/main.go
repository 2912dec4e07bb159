// chatsoak-agent — агент нагрузочного тестирования чат-бота.
//
// Agent:
//   - Отправляет вопросы чат-боту в фоновом цикле с паузами и jitter
//   - Пишет пары вопрос/ответ в журналы (csv, sqlite, postgres, redis, amqp)
//   - Управляется через HTTP API, RabbitMQ и cron-расписание
//   - Отдаёт /healthz и /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/chatsoak/internal/api"
	"github.com/shaiso/chatsoak/internal/config"
	"github.com/shaiso/chatsoak/internal/domain"
	"github.com/shaiso/chatsoak/internal/questions"
	"github.com/shaiso/chatsoak/internal/scheduler"
	"github.com/shaiso/chatsoak/internal/telemetry"
	"github.com/shaiso/chatsoak/internal/worker"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()

	if err := run(logger); err != nil {
		logger.Error("agent failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger.Info("starting chatsoak-agent",
		"config", cfgPath,
		"executor", cfg.Executor.Kind,
		"url", cfg.URL,
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := config.NewStore(cfgPath, cfg, telemetry.WithComponent(logger, "config"))
	metrics := telemetry.NewMetrics(nil)

	// RabbitMQ (опционально)
	bus, err := setupAMQP(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	// Журналы
	sinks, err := buildSinks(ctx, cfg, bus.publisher, metrics, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	// Picker
	var picker worker.Picker
	if cfg.Picker == config.PickerRoundRobin {
		picker = &worker.RoundRobinPicker{}
	} else {
		picker = worker.NewRandomPicker(cfg.Seed)
	}

	// Вопросы перечитываются из текущего questions_file на каждом цикле
	prompts := questions.NewSource(questions.LoaderFunc(func() ([]string, error) {
		return questions.FileLoader{Path: store.Get().QuestionsFile}.Load()
	}), "", telemetry.WithComponent(logger, "questions"))

	// Executor собирается из текущей конфигурации на каждую сессию
	registry := worker.NewRegistry()
	if _, err := registry.Build(cfg.Target()); err != nil {
		return fmt.Errorf("executor: %w", err)
	}

	wcfg := worker.Config{
		Executor:       registry.Dynamic(func() domain.Target { return store.Get().Target() }),
		Prompts:        prompts,
		Picker:         picker,
		Sink:           sinks.fanout,
		Recorder:       metrics,
		Pacing:         cfg.Pacing(),
		PromptEnv:      questions.PromptEnv(os.Environ(), cfg.PromptEnv),
		CaptureReplies: cfg.CaptureResponses,
		StopTimeout:    cfg.StopTimeoutDuration(),
		Seed:           cfg.Seed,
		Logger:         telemetry.WithComponent(logger, "worker"),
	}
	if bus.publisher != nil {
		wcfg.Notifier = bus.publisher
	}
	w := worker.New(wcfg)

	// Команды управления из RabbitMQ
	bus.startConsumer(ctx, w, store)

	// Окна нагрузки по cron
	if cfg.Schedule.Enabled() {
		sched, err := scheduler.New(scheduler.Config{
			Worker:    w,
			StartCron: cfg.Schedule.StartCron,
			StopCron:  cfg.Schedule.StopCron,
			Timezone:  cfg.Schedule.Timezone,
			Logger:    telemetry.WithComponent(logger, "scheduler"),
		})
		if err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		go sched.Run(ctx, time.Second)
		logger.Info("schedule enabled",
			"start_cron", cfg.Schedule.StartCron,
			"stop_cron", cfg.Schedule.StopCron,
		)
	}

	// HTTP
	handler := api.NewHandler(api.Config{
		Worker:  w,
		Store:   store,
		History: sinks.history,
		Logger:  telemetry.WithComponent(logger, "api"),
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		fmt.Fprintf(rw, "ok %s", time.Since(startTime))
		if bus.conn != nil && !bus.conn.IsConnected() {
			fmt.Fprint(rw, " (amqp reconnecting)")
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- serve(server, cfg.TLS, logger)
	}()

	if cfg.Autostart {
		if err := w.Start(); err != nil {
			logger.Warn("autostart failed", "error", err)
		} else {
			logger.Info("worker autostarted")
		}
	}

	// Ожидаем сигнал завершения или падение сервера
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		cancel()
	}

	if err := w.Stop(); err != nil {
		logger.Warn("worker stop", "error", err)
	}

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
	return nil
}

// serve запускает HTTP или HTTPS. Возвращает nil после Shutdown.
func serve(server *http.Server, tls config.TLSConfig, logger *slog.Logger) error {
	var err error
	switch {
	case tls.Enabled && tls.Cert != "" && tls.Key != "":
		logger.Info("listening", "addr", server.Addr, "tls", true)
		err = server.ListenAndServeTLS(tls.Cert, tls.Key)
	default:
		if tls.Enabled {
			logger.Warn("tls enabled without cert and key, serving plain http")
		}
		logger.Info("listening", "addr", server.Addr, "tls", false)
		err = server.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
