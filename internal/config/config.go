package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все параметры запуска десктопного демона сделок.
type Config struct {
	Env      string
	LogLevel string
	HTTPPort string

	// Удалённое REST API и токен пользователя.
	APIBaseURL     string
	APIToken       string
	StorageBaseURL string
	RequestTimeout time.Duration

	// Канал реального времени (протокол Pusher).
	RealtimeURL          string
	RealtimeAppKey       string
	BroadcastAuthURL     string
	ReconnectMaxInterval time.Duration

	ActivePollInterval time.Duration
	MaxUploadSizeMB    int64
	AllowedOrigins     []string
	RateLimitLimit     int64
	RateLimitPeriod    time.Duration
}

// Load читает переменные окружения и возвращает готовую конфигурацию.
func Load() (*Config, error) {
	// Загружаем .env только если он существует, иначе используем системные переменные.
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("config: .env не найден, используем переменные окружения: %v", err)
	}

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:            env,
		LogLevel:       getEnv("LOG_LEVEL", ""),
		HTTPPort:       getEnv("HTTP_PORT", "8090"),
		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000/api"), "/"),
		APIToken:       getEnv("API_TOKEN", ""),
		StorageBaseURL: strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:8000/storage"), "/"),
		RealtimeURL:    getEnv("REALTIME_URL", ""),
		RealtimeAppKey: getEnv("REALTIME_APP_KEY", ""),
	}

	cfg.BroadcastAuthURL = getEnv("BROADCAST_AUTH_URL", cfg.APIBaseURL+"/broadcasting/auth")

	if env == "production" {
		if cfg.APIToken == "" {
			return nil, fmt.Errorf("config: API_TOKEN обязателен в production")
		}
		if _, ok := os.LookupEnv("API_BASE_URL"); !ok {
			return nil, fmt.Errorf("config: API_BASE_URL обязателен в production")
		}
	} else if cfg.APIToken == "" {
		log.Printf("config: WARNING - API_TOKEN не задан, команды будут отклонены сервером")
	}

	if cfg.RealtimeURL != "" {
		if _, err := url.Parse(cfg.RealtimeURL); err != nil {
			return nil, fmt.Errorf("config: некорректный REALTIME_URL: %w", err)
		}
	}

	// CORS allowed origins
	originsStr := getEnv("CORS_ALLOWED_ORIGINS", "")
	if originsStr == "" {
		if env == "production" {
			return nil, fmt.Errorf("config: CORS_ALLOWED_ORIGINS обязателен в production")
		}
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	} else {
		cfg.AllowedOrigins = strings.Split(originsStr, ",")
		for i, origin := range cfg.AllowedOrigins {
			cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	cfg.RequestTimeout = mustParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	cfg.ActivePollInterval = mustParseDuration(getEnv("ACTIVE_POLL_INTERVAL", "30s"))
	cfg.ReconnectMaxInterval = mustParseDuration(getEnv("RECONNECT_MAX_INTERVAL", "30s"))
	cfg.MaxUploadSizeMB = mustParseInt64(getEnv("MAX_UPLOAD_MB", "10"))

	// Rate limiting настройки
	cfg.RateLimitLimit = mustParseInt64(getEnv("RATE_LIMIT_LIMIT", "30"))
	cfg.RateLimitPeriod = mustParseDuration(getEnv("RATE_LIMIT_PERIOD", "1m"))

	return cfg, nil
}

// RealtimeEnabled сообщает, настроен ли канал реального времени.
func (c *Config) RealtimeEnabled() bool {
	return c.RealtimeURL != "" && c.RealtimeAppKey != ""
}

// getEnv возвращает значение переменной окружения или дефолт.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// mustParseDuration безопасно парсит строку в duration.
func mustParseDuration(v string) time.Duration {
	dur, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: не удалось распарсить длительность %q: %v", v, err)
	}
	return dur
}

// mustParseInt64 безопасно парсит строку в int64.
func mustParseInt64(v string) int64 {
	num, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("config: не удалось распарсить число %q: %v", v, err)
	}
	return num
}
