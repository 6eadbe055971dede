package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAdminUser = "admin"
	DefaultAdminPass = "password"
)

// Config представляет основную конфигурацию приложения BrightSide.
// Содержит настройки сервера, логгера, агрегации, администратора и базы данных.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Logger   LoggerConfig   `json:"logger"`
	App      AppConfig      `json:"app"`
	Admin    AdminConfig    `json:"admin"`
	Database DatabaseConfig `json:"database"`
}

// ServerConfig содержит настройки HTTP-сервера приложения.
type ServerConfig struct {
	Address string `json:"address"`
}

// LoggerConfig содержит настройки системы логирования.
// Level - уровень детализации (debug, info, warn, error).
// Dir - каталог для файлов логов; пустое значение означает вывод в stdout/stderr.
type LoggerConfig struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// FeedURL представляет дополнительную ленту, заданную в конфигурации поверх встроенного каталога.
type FeedURL struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Region   string `json:"region"`
	Category string `json:"category"`
}

// AppConfig содержит настройки бизнес-логики приложения:
// лимиты выдачи, порог тональности, интервалы обновления и параллелизм загрузки.
type AppConfig struct {
	DefaultNewsLimit   int       `json:"default_news_limit"`
	FeedURLs           []FeedURL `json:"feed_urls"`
	ProcessingInterval string    `json:"processing_interval"`
	CacheDuration      string    `json:"cache_duration"`
	FetchTimeout       string    `json:"fetch_timeout"`
	FetchConcurrency   int       `json:"fetch_concurrency"`
	PositiveThreshold  float64   `json:"positive_threshold"`
	NegativeKeywords   []string  `json:"negative_keywords"`
	LazyRefresh        bool      `json:"lazy_refresh"`
	UserAgent          string    `json:"user_agent"`
}

// AdminConfig содержит учетные данные администратора и секрет подписи сессий.
type AdminConfig struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	SessionSecret string `json:"session_secret"`
}

// DatabaseConfig содержит параметры подключения к PostgreSQL.
// Пустой URL и пустой Host означают работу без постоянного хранилища.
type DatabaseConfig struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// Enabled сообщает, настроено ли подключение к базе данных.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// DSN возвращает строку подключения к PostgreSQL в формате URI.
// Явно заданный URL имеет приоритет над отдельными полями.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.PathEscape(c.Username),
		url.PathEscape(c.Password),
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode)
}

// Load загружает конфигурацию из JSON-файла по указанному пути и применяет
// переменные окружения. Отсутствие файла не считается ошибкой:
// используются значения по умолчанию.
func Load(configPath string) (*Config, error) {
	cfg := New()
	if configPath != "" {
		fileData, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := json.Unmarshal(fileData, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse JSON from file %s: %w", configPath, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New создает новый экземпляр Config с значениями по умолчанию.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":5005",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		App: AppConfig{
			DefaultNewsLimit:   50,
			ProcessingInterval: "15m",
			CacheDuration:      "15m",
			FetchTimeout:       "30s",
			FetchConcurrency:   8,
			PositiveThreshold:  0.80,
			LazyRefresh:        true,
			UserAgent:          "BrightSide/1.0 (+https://github.com/brightside-news)",
			FeedURLs:           []FeedURL{},
		},
		Admin: AdminConfig{
			Username: DefaultAdminUser,
			Password: DefaultAdminPass,
		},
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

type lookupFunc func(key string) (string, bool)

// applyEnv переопределяет значения конфигурации переменными окружения.
func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup("ADMIN_USER"); ok && v != "" {
		c.Admin.Username = v
	}
	if v, ok := lookup("ADMIN_PASS"); ok && v != "" {
		c.Admin.Password = v
	}
	if v, ok := lookup("SESSION_SECRET"); ok && v != "" {
		c.Admin.SessionSecret = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logger.Level = strings.ToLower(v)
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Address = ":" + v
	}
	if v, ok := lookup("CACHE_DURATION_SECONDS"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_DURATION_SECONDS %q: %w", v, err)
		}
		c.App.CacheDuration = (time.Duration(secs) * time.Second).String()
	}
	return nil
}

// InsecureAdmin сообщает, что используются учетные данные администратора по умолчанию.
func (c *Config) InsecureAdmin() bool {
	return c.Admin.Username == DefaultAdminUser || c.Admin.Password == DefaultAdminPass
}

// ProcessingEvery возвращает интервал фонового обновления.
// Значение уже проверено в Validate.
func (c *Config) ProcessingEvery() time.Duration {
	d, _ := time.ParseDuration(c.App.ProcessingInterval)
	return d
}

// CacheTTL возвращает срок, после которого кэш считается устаревшим.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.App.CacheDuration)
	return d
}

// FetchTimeoutDuration возвращает таймаут обработки одного источника.
func (c *Config) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.App.FetchTimeout)
	return d
}

// Validate проверяет корректность конфигурации.
// Возвращает ошибку с описанием первой найденной проблемы.
func (c *Config) Validate() error {
	if c.App.DefaultNewsLimit <= 0 {
		return fmt.Errorf("app.default_news_limit must be a positive number")
	}
	if c.App.FetchConcurrency <= 0 {
		return fmt.Errorf("app.fetch_concurrency must be a positive number")
	}
	if c.App.PositiveThreshold < -1 || c.App.PositiveThreshold > 1 {
		return fmt.Errorf("app.positive_threshold must be within [-1, 1], got %v", c.App.PositiveThreshold)
	}
	for _, feed := range c.App.FeedURLs {
		u, err := url.ParseRequestURI(feed.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid url in app.feed_urls: %s", feed.URL)
		}
	}
	durations := map[string]string{
		"app.processing_interval": c.App.ProcessingInterval,
		"app.cache_duration":      c.App.CacheDuration,
		"app.fetch_timeout":       c.App.FetchTimeout,
	}
	for name, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin credentials must not be empty")
	}
	if c.Database.URL == "" && c.Database.Host != "" && c.Database.Username == "" {
		return fmt.Errorf("database username is not set")
	}
	return nil
}
