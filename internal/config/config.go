package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/scraper"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	BaseURL         string
	Mode            string
	Engine          string
	Sections        []string
	ConsentTimeout  time.Duration
	LoadMoreTimeout time.Duration
	MaxLoadMore     int
	StallLimit      int
	SettleTimeout   time.Duration
	RateLimitMin    time.Duration
	RateLimitMax    time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ImplicitWait   time.Duration
	PollInterval   time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type OutputConfig struct {
	Dir string
	// Delimiter is empty for the mode's default.
	Delimiter string
	CRLF      bool
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	EngineStatic     = "static"
	EnginePlaywright = "playwright"
)

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL:         getEnvOrDefault("SCRAPER_BASE_URL", catalog.DefaultBaseURL),
			Mode:            getEnvOrDefault("SCRAPER_MODE", string(catalog.ModeDetail)),
			Engine:          getEnvOrDefault("SCRAPER_ENGINE", EnginePlaywright),
			Sections:        getStringSliceOrDefault("SCRAPER_SECTIONS", nil),
			ConsentTimeout:  getDurationOrDefault("SCRAPER_CONSENT_TIMEOUT", time.Second),
			LoadMoreTimeout: getDurationOrDefault("SCRAPER_LOAD_MORE_TIMEOUT", 5*time.Second),
			MaxLoadMore:     getIntOrDefault("SCRAPER_MAX_LOAD_MORE", 100),
			StallLimit:      getIntOrDefault("SCRAPER_STALL_LIMIT", 3),
			SettleTimeout:   getDurationOrDefault("SCRAPER_SETTLE_TIMEOUT", 2*time.Second),
			RateLimitMin:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 0),
			RateLimitMax:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 0),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ImplicitWait:   getDurationOrDefault("BROWSER_IMPLICIT_WAIT", 3*time.Second),
			PollInterval:   getDurationOrDefault("BROWSER_POLL_INTERVAL", 100*time.Millisecond),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "UTC"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Output: OutputConfig{
			Dir:       getEnvOrDefault("OUTPUT_DIR", "output"),
			Delimiter: os.Getenv("OUTPUT_DELIMITER"),
			CRLF:      getBoolOrDefault("OUTPUT_CRLF", false),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", os.Getenv("DB_HOST") != ""),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", os.Getenv("REDIS_ADDR") != ""),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog_scrape"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := catalog.ParseMode(c.Scraper.Mode); err != nil {
		return fmt.Errorf("SCRAPER_MODE: %w", err)
	}

	if c.Scraper.Engine != EnginePlaywright && c.Scraper.Engine != EngineStatic {
		return fmt.Errorf("SCRAPER_ENGINE must be %q or %q, got %q", EnginePlaywright, EngineStatic, c.Scraper.Engine)
	}

	if c.Scraper.MaxLoadMore < 1 {
		return fmt.Errorf("SCRAPER_MAX_LOAD_MORE must be at least 1")
	}

	if c.Scraper.StallLimit < 1 {
		return fmt.Errorf("SCRAPER_STALL_LIMIT must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if _, err := c.Output.DelimiterRune(); err != nil {
		return err
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}

	if c.Database.Enabled && c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required when the database is enabled")
	}

	return nil
}

// DelimiterRune parses the configured delimiter; "tab" and `\t` name a tab.
// Zero means the mode's default.
func (o OutputConfig) DelimiterRune() (rune, error) {
	switch o.Delimiter {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}

	r, size := utf8.DecodeRuneInString(o.Delimiter)
	if size != len(o.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("OUTPUT_DELIMITER must be a single character other than quote or newline, got %q", o.Delimiter)
	}
	return r, nil
}

func (c *Config) ScraperOptions() *scraper.Options {
	opts := scraper.DefaultOptions()
	if mode, err := catalog.ParseMode(c.Scraper.Mode); err == nil {
		opts.Mode = mode
	}
	opts.ConsentTimeout = c.Scraper.ConsentTimeout
	opts.LoadMoreTimeout = c.Scraper.LoadMoreTimeout
	opts.MaxLoadMore = c.Scraper.MaxLoadMore
	opts.StallLimit = c.Scraper.StallLimit
	opts.SettleTimeout = c.Scraper.SettleTimeout
	opts.RateLimitMin = c.Scraper.RateLimitMin
	opts.RateLimitMax = c.Scraper.RateLimitMax
	return opts
}

func (c *Config) BrowserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = c.Browser.Headless
	opts.Timeout = c.Browser.Timeout
	opts.ImplicitWait = c.Browser.ImplicitWait
	opts.PollInterval = c.Browser.PollInterval
	opts.ViewportWidth = c.Browser.ViewportWidth
	opts.ViewportHeight = c.Browser.ViewportHeight
	opts.AcceptLanguage = c.Browser.AcceptLanguage
	opts.TimezoneID = c.Browser.TimezoneID
	opts.Locale = c.Browser.Locale
	opts.ProxyServer = c.Browser.ProxyServer
	return opts
}

func (d DatabaseConfig) PoolConfig() database.Config {
	return database.Config{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Database: d.DBName,
		SSLMode:  d.SSLMode,
		MaxConns: int32(d.MaxConns),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
