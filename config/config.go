package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/fiffu/stockwatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"stockwatch.sqlite"`

	Polling struct {
		RequestInterval   time.Duration            `env:"REQUEST_INTERVAL" envDefault:"5m"`
		BrowserInterval   time.Duration            `env:"BROWSER_INTERVAL" envDefault:"10m"`
		SiteIntervals     map[string]time.Duration `env:"SITE_INTERVALS"`
		FailureBackoff    time.Duration            `env:"FAILURE_BACKOFF" envDefault:"30m"`
		IdleDelay         time.Duration            `env:"IDLE_DELAY" envDefault:"10s"`
		BrowserItemDelay  time.Duration            `env:"BROWSER_ITEM_DELAY" envDefault:"5s"`
		BrowserCycleDelay time.Duration            `env:"BROWSER_CYCLE_DELAY" envDefault:"5s"`
		FetchTimeout      time.Duration            `env:"FETCH_TIMEOUT" envDefault:"30s"`
		RequestsPerSecond float64                  `env:"REQUESTS_PER_SECOND" envDefault:"1"`
	}

	Sites struct {
		Browser  []string `env:"BROWSER_SITES"`
		Bannable []string `env:"BANNABLE_SITES" envDefault:"canadacomputers"`
	}

	Browser struct {
		RecycleInterval time.Duration `env:"BROWSER_RECYCLE_INTERVAL" envDefault:"1h"`
		RemoteURL       string        `env:"BROWSER_REMOTE_URL"`
		Local           bool          `env:"IS_LOCAL" envDefault:"false"`
	}

	Notify struct {
		Platform      string `env:"NOTIFY_PLATFORM" envDefault:"log"`
		AdminID       string `env:"ADMINISTRATOR_ID"`
		DiscordToken  string `env:"DISCORD_TOKEN"`
		MaxAttempts   int    `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"`
		QueueSize     int    `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
		HistoryTZName string `env:"HISTORY_TIMEZONE" envDefault:"America/Los_Angeles"`
	}

	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg, err := Parse()
	if err != nil {
		log.Sugar().Panic(err)
	}
	cfg.log = log

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.Env == "development" {
			cfg.log.Sugar().Infof("%s (credentials will be set to default in development env)", err)
			creds = map[string]string{"admin": "password"}
		} else {
			cfg.log.Sugar().Panic(err)
		}
	}
	cfg.creds = creds

	return cfg
}

// Parse reads the environment without any side effects.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Polling.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if cfg.Polling.RequestsPerSecond <= 0 {
		return errors.New("REQUESTS_PER_SECOND must be positive")
	}
	if cfg.Notify.MaxAttempts < 1 {
		return errors.New("NOTIFY_MAX_ATTEMPTS must be at least 1")
	}
	switch cfg.Notify.Platform {
	case "log":
	case "discord":
		if cfg.Notify.DiscordToken == "" {
			return errors.New("DISCORD_TOKEN is required when NOTIFY_PLATFORM=discord")
		}
	case "email":
		if cfg.Mailgun.Domain == "" || cfg.Mailgun.APIKey == "" {
			return errors.New("MAILGUN_DOMAIN and MAILGUN_API_KEY are required when NOTIFY_PLATFORM=email")
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_PLATFORM %q, expected log, discord or email", cfg.Notify.Platform)
	}
	if _, err := time.LoadLocation(cfg.Notify.HistoryTZName); err != nil {
		return fmt.Errorf("HISTORY_TIMEZONE: %w", err)
	}
	return nil
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

// SiteInterval returns the per-site override, else the default for the site's class.
func (cfg *Config) SiteInterval(site models.Site, class models.Class) time.Duration {
	if d, ok := cfg.Polling.SiteIntervals[string(site)]; ok && d > 0 {
		return d
	}
	if class == models.ClassBrowser {
		return cfg.Polling.BrowserInterval
	}
	return cfg.Polling.RequestInterval
}

func (cfg *Config) SiteClass(site models.Site) models.Class {
	for _, s := range cfg.Sites.Browser {
		if models.Site(strings.TrimSpace(s)) == site {
			return models.ClassBrowser
		}
	}
	return models.ClassRequest
}

func (cfg *Config) IsBannable(site models.Site) bool {
	for _, s := range cfg.Sites.Bannable {
		if models.Site(strings.TrimSpace(s)) == site {
			return true
		}
	}
	return false
}

func (cfg *Config) HistoryLocation() *time.Location {
	loc, err := time.LoadLocation(cfg.Notify.HistoryTZName)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar must be populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	if len(creds) == 0 {
		return nil, errors.New("BASIC_AUTH_CREDS envvar should be filled with comma-separated values -- user1:pass1,user2:pass2")
	}

	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
