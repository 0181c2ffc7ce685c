package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"advent-calendar/internal/adapters/api"
	"advent-calendar/internal/adapters/llm"
	"advent-calendar/internal/adapters/repo"
	"advent-calendar/internal/adapters/storage"
	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/cache"
	"advent-calendar/internal/infra/config"
	"advent-calendar/internal/infra/db"
	httpinfra "advent-calendar/internal/infra/http"
	applog "advent-calendar/internal/infra/log"
	"advent-calendar/internal/infra/metrics"
	"advent-calendar/internal/infra/openai"
	"advent-calendar/internal/infra/queue"
	"advent-calendar/internal/usecase/calendar"
	"advent-calendar/internal/usecase/dashboard"
	"advent-calendar/internal/usecase/enrichment"
	"advent-calendar/internal/usecase/entries"
	"advent-calendar/internal/usecase/export"
	"advent-calendar/internal/usecase/media"
	"advent-calendar/internal/usecase/reactions"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("api: JWT_SECRET не задан")
	}

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api: миграции не применены")
	}

	var (
		locker   domain.Locker
		progress *queue.RedisProgress
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		locker = cache.NewRedisLocker(rdb, applog.Component(logger, "lock"))
		progress = queue.NewRedisProgress(rdb, applog.Component(logger, "progress"))
	} else {
		logger.Warn().Msg("api: REDIS_ADDR не задан, блокировки и поток прогресса отключены")
	}

	var events domain.EventPublisher = domain.NopPublisher{}
	if cfg.Events.RabbitURL != "" {
		bus, err := queue.NewRabbitBus(cfg.Events.RabbitURL, cfg.Events.Exchange, applog.Component(logger, "events"))
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer bus.Close()
		events = bus
	}

	ftp := storage.NewFTP(storage.FTPConfig{
		Addr:          cfg.FTP.Addr,
		User:          cfg.FTP.User,
		Password:      cfg.FTP.Password,
		BaseDir:       cfg.FTP.BaseDir,
		PublicBaseURL: cfg.FTP.PublicBaseURL,
		Timeout:       cfg.FTP.Timeout,
	})

	var (
		translator  domain.Translator
		refiner     domain.Refiner
		transcriber domain.Transcriber
	)
	if cfg.LLM.APIKey != "" {
		chat := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		translator = llm.NewTranslator(chat, cfg.LLM.Model, cfg.LLM.Timeout)
		refiner = llm.NewRefiner(chat, cfg.LLM.Model, cfg.LLM.Timeout)
	}
	if cfg.OpenAI.APIKey != "" {
		speech := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		transcriber = llm.NewTranscriber(speech, cfg.OpenAI.TranscriptionModel, cfg.OpenAI.Timeout)
	}

	totalDays := cfg.Calendar.TotalDays
	gate := calendar.NewGate(calendar.Settings{
		TotalDays:     totalDays,
		CampaignMonth: time.Month(cfg.Calendar.CampaignMonth),
		Location:      cfg.Location(),
		Outside:       calendar.ParseOutsidePolicy(cfg.Calendar.OutsidePolicy),
	})
	calendarOpts := []calendar.Option{
		calendar.WithLogger(applog.Component(logger, "calendar")),
		calendar.WithEvents(events),
	}
	if progress != nil {
		calendarOpts = append(calendarOpts, calendar.WithNotifier(progress))
	}

	deps := api.Deps{
		Calendar:   calendar.NewService(store, store, store, store, gate, calendarOpts...),
		Reactions:  reactions.NewService(store, store, store, events, totalDays, applog.Component(logger, "reactions")),
		Entries:    entries.NewService(store, translator, locker, events, totalDays, applog.Component(logger, "entries")),
		Media:      media.NewService(ftp, totalDays, applog.Component(logger, "media")),
		Export:     export.NewService(store, ftp, applog.Component(logger, "export"), export.WithConcurrency(cfg.ExportConcurrency), export.WithLocker(locker)),
		Enrichment: enrichment.NewPipeline(transcriber, refiner, applog.Component(logger, "enrichment")),
		Dashboard:  dashboard.NewService(store, store, totalDays),
	}
	if progress != nil {
		deps.Progress = progress
	}

	auth := httpinfra.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, store, applog.Component(logger, "auth"))
	handler := api.NewHandler(deps, applog.Component(logger, "api"))

	server := httpinfra.NewServer(applog.Component(logger, "http"))
	server.Router.Mount("/api/v1", handler.Routes(auth.Middleware))

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)
	go func() {
		if err := server.Start(addr(cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: остановка с ошибкой")
	}
}

func addr(port int) string {
	return ":" + strconv.Itoa(port)
}
