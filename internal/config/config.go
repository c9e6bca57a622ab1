// Package config loads settings from a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"KabuSentinel/internal/collector"
	"KabuSentinel/internal/market"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/strategy"
	"KabuSentinel/internal/universe"
	"KabuSentinel/internal/watchlist"
)

// EnvFile is loaded into the environment before overrides are applied, when present.
var EnvFile = ".env"

// Config holds all application configuration.
type Config struct {
	Sheet struct {
		ID       string `yaml:"id"`
		Location string `yaml:"location"`
		Encoding string `yaml:"encoding"`
	} `yaml:"sheet"`
	Tickers    []string `yaml:"tickers"`
	DataSource struct {
		Kind      string                        `yaml:"kind"` // yahoo, financego, mock
		BaseURL   string                        `yaml:"base_url"`
		RateLimit float64                       `yaml:"rate_limit"`
		Plans     map[model.Mode]collector.Plan `yaml:"plans"`
	} `yaml:"data_source"`
	Strategy struct {
		RSISmoothing  string          `yaml:"rsi_smoothing"` // simple or wilder
		Swing         strategy.Params `yaml:"swing"`
		Day           strategy.Params `yaml:"day"`
		DisabledRules []string        `yaml:"disabled_rules"`
	} `yaml:"strategy"`
	Market struct {
		Holidays []string `yaml:"holidays"`
	} `yaml:"market"`
	Watchlist struct {
		Path       string `yaml:"path"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"watchlist"`
	Cooldown struct {
		Window    time.Duration `yaml:"window"`
		RedisAddr string        `yaml:"redis_addr"`
		RedisDB   int           `yaml:"redis_db"`
	} `yaml:"cooldown"`
	Notify struct {
		DiscordURL string `yaml:"discord_url"`
		Telegram   struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
			Commands bool   `yaml:"commands"`
		} `yaml:"telegram"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
		MaxRetries int           `yaml:"max_retries"`
		MaxElapsed time.Duration `yaml:"max_elapsed"`
	} `yaml:"notify"`
	Schedule struct {
		PassCron string `yaml:"pass_cron"`
		ScanCron string `yaml:"scan_cron"`
	} `yaml:"schedule"`
	Database struct {
		Driver string `yaml:"driver"` // sqlite or postgres, empty disables history
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// env lists the variables that override the file.
type env struct {
	DiscordURL       string   `envconfig:"DISCORD_URL"`
	SheetID          string   `envconfig:"SHEET_ID"`
	TelegramBotToken string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string   `envconfig:"TELEGRAM_CHAT_ID"`
	RedisAddr        string   `envconfig:"REDIS_ADDR"`
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	DBDriver         string   `envconfig:"DB_DRIVER"`
	DBDSN            string   `envconfig:"DB_DSN"`
	LogLevel         string   `envconfig:"LOG_LEVEL"`
	Proxy            string   `envconfig:"HTTPS_PROXY"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	cfg := &Config{}
	cfg.DataSource.Kind = "yahoo"
	cfg.DataSource.RateLimit = 2
	cfg.Strategy.RSISmoothing = "simple"
	cfg.Strategy.Swing = strategy.DefaultParams(model.ModeSwing)
	cfg.Strategy.Day = strategy.DefaultParams(model.ModeDay)
	cfg.Watchlist.Path = "data/watchlist.json"
	cfg.Watchlist.MaxAgeDays = watchlist.DefaultMaxAge
	cfg.Cooldown.Window = 30 * time.Minute
	cfg.Notify.Kafka.Topic = "kabusentinel.alerts"
	cfg.Notify.MaxElapsed = time.Minute
	cfg.Schedule.PassCron = "0 */5 9-15 * * 1-5"
	cfg.Schedule.ScanCron = "0 0 16 * * 1-5"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads config from a YAML file over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", EnvFile, err)
	}
	var e env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	cfg.applyEnv(e)

	if cfg.Strategy.RSISmoothing == "wilder" {
		cfg.Strategy.Swing.RSIWilder = true
		cfg.Strategy.Day.RSIWilder = true
	}
	return cfg, nil
}

func (c *Config) applyEnv(e env) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Notify.DiscordURL, e.DiscordURL)
	set(&c.Sheet.ID, e.SheetID)
	set(&c.Notify.Telegram.BotToken, e.TelegramBotToken)
	set(&c.Notify.Telegram.ChatID, e.TelegramChatID)
	set(&c.Cooldown.RedisAddr, e.RedisAddr)
	set(&c.Database.Driver, e.DBDriver)
	set(&c.Database.DSN, e.DBDSN)
	set(&c.Log.Level, e.LogLevel)
	set(&c.Proxy, e.Proxy)
	if len(e.KafkaBrokers) > 0 {
		c.Notify.Kafka.Brokers = e.KafkaBrokers
	}
}

// Validate checks that the settings are usable together.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 && c.SheetSource().Location == "" {
		return fmt.Errorf("either tickers or sheet.id/sheet.location is required")
	}
	switch c.DataSource.Kind {
	case "yahoo", "financego", "mock":
	default:
		return fmt.Errorf("data_source.kind %q is not one of yahoo, financego, mock", c.DataSource.Kind)
	}
	switch c.Strategy.RSISmoothing {
	case "simple", "wilder":
	default:
		return fmt.Errorf("strategy.rsi_smoothing %q is not one of simple, wilder", c.Strategy.RSISmoothing)
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not one of sqlite, postgres", c.Database.Driver)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
	}
	if (c.Notify.Telegram.BotToken == "") != (c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram needs both bot_token and chat_id")
	}
	if c.Notify.MaxRetries < 0 {
		return fmt.Errorf("notify.max_retries must not be negative")
	}
	if c.Watchlist.MaxAgeDays < 0 {
		return fmt.Errorf("watchlist.max_age_days must not be negative")
	}
	if c.Cooldown.Window < 0 {
		return fmt.Errorf("cooldown.window must not be negative")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, spec := range map[string]string{"pass_cron": c.Schedule.PassCron, "scan_cron": c.Schedule.ScanCron} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("schedule.%s: %w", name, err)
		}
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	return nil
}

// SheetSource returns where the universe sheet is read from. An explicit location
// wins over a Google Sheet ID.
func (c *Config) SheetSource() universe.Source {
	src := universe.Source{Location: c.Sheet.Location, Encoding: c.Sheet.Encoding}
	if src.Location == "" && c.Sheet.ID != "" {
		src.Location = universe.SheetURL(c.Sheet.ID)
	}
	return src
}

// Calendar returns the Tokyo calendar with the configured holidays.
func (c *Config) Calendar() (*market.Calendar, error) {
	cal := market.TokyoCalendar()
	if err := cal.AddHolidays(c.Market.Holidays...); err != nil {
		return nil, fmt.Errorf("market.holidays: %w", err)
	}
	return cal, nil
}

// Params returns the strategy parameters for mode.
func (c *Config) Params(mode model.Mode) strategy.Params {
	if mode == model.ModeDay {
		return c.Strategy.Day
	}
	return c.Strategy.Swing
}
