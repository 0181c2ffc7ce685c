package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"advent-calendar/internal/adapters/repo"
	"advent-calendar/internal/adapters/telegram"
	"advent-calendar/internal/infra/config"
	"advent-calendar/internal/infra/db"
	applog "advent-calendar/internal/infra/log"
	"advent-calendar/internal/infra/metrics"
	"advent-calendar/internal/infra/queue"
	"advent-calendar/internal/usecase/notify"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Events.RabbitURL == "" {
		logger.Fatal().Msg("notifier: RABBITMQ_URL не задан")
	}

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: нет подключения к БД")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	var messenger notify.Messenger
	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось создать бота")
		}
		messenger = telegram.NewAdminChat(botAPI, cfg.Telegram.AdminChatID, applog.Component(logger, "telegram"))
	} else {
		logger.Warn().Msg("notifier: Telegram не настроен, сохраняются только метрики")
	}

	service := notify.NewService(store, store, messenger, applog.Component(logger, "notify"))

	bus, err := queue.NewRabbitBus(cfg.Events.RabbitURL, cfg.Events.Exchange, applog.Component(logger, "events"))
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: нет подключения к RabbitMQ")
	}
	defer bus.Close()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	logger.Info().Str("queue", cfg.Events.Queue).Msg("notifier: старт")
	if err := bus.Consume(ctx, cfg.Events.Queue, service.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("notifier: чтение очереди остановлено")
	}
	logger.Info().Msg("notifier: остановка")
}
