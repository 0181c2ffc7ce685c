package config

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Berlin"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
		JWTIssuer string `envconfig:"JWT_ISSUER"`
	} `envconfig:""`

	Calendar struct {
		TotalDays     int    `envconfig:"CALENDAR_TOTAL_DAYS" default:"24"`
		CampaignMonth int    `envconfig:"CAMPAIGN_MONTH" default:"12"`
		OutsidePolicy string `envconfig:"CAMPAIGN_OUTSIDE_POLICY" default:"locked"`
	} `envconfig:""`

	OpenAI struct {
		APIKey             string        `envconfig:"OPENAI_API_KEY"`
		BaseURL            string        `envconfig:"OPENAI_BASE_URL"`
		TranscriptionModel string        `envconfig:"OPENAI_TRANSCRIPTION_MODEL" default:"whisper-1"`
		Timeout            time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	LLM struct {
		APIKey  string        `envconfig:"LLM_API_KEY"`
		BaseURL string        `envconfig:"LLM_BASE_URL"`
		Model   string        `envconfig:"LLM_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"LLM_TIMEOUT" default:"45s"`
	} `envconfig:""`

	FTP struct {
		Addr          string        `envconfig:"FTP_ADDR"`
		User          string        `envconfig:"FTP_USER"`
		Password      string        `envconfig:"FTP_PASSWORD"`
		BaseDir       string        `envconfig:"FTP_BASE_DIR" default:"calendar-media"`
		PublicBaseURL string        `envconfig:"FTP_PUBLIC_BASE_URL"`
		Timeout       time.Duration `envconfig:"FTP_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Events struct {
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		Exchange  string `envconfig:"EVENTS_EXCHANGE" default:"advent.events"`
		Queue     string `envconfig:"EVENTS_QUEUE" default:"advent.notifier"`
	} `envconfig:""`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		AdminChatID int64  `envconfig:"TG_ADMIN_CHAT_ID"`
	} `envconfig:""`

	MetricsAddr       string `envconfig:"METRICS_ADDR" default:":9090"`
	ExportConcurrency int    `envconfig:"EXPORT_CONCURRENCY" default:"4"`
}

// Load загружает .env (если есть) и конфиг из окружения.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("не удалось прочитать .env: %v", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает часовой пояс кампании; при ошибке UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
