package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/manhunt.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	// RedisURL switches the location store to Redis when set.
	RedisURL string `env:"REDIS_URL"`

	TimeZone           string        `env:"TIME_ZONE" envDefault:"Europe/Kyiv"`
	TickInterval       time.Duration `env:"TICK_INTERVAL" envDefault:"1m"`
	RoundInterval      time.Duration `env:"ROUND_INTERVAL" envDefault:"5m"`
	TickWorkers        int           `env:"TICK_WORKERS" envDefault:"4"`
	JoinWhileProcessed bool          `env:"JOIN_WHILE_PROCESSED" envDefault:"false"`
	InviteBaseURL      string        `env:"INVITE_BASE_URL" envDefault:"https://t.me/manhunt_bot"`

	DiscordToken         string  `env:"DISCORD_BOT_TOKEN"`
	DiscordRatePerSecond float64 `env:"DISCORD_RATE_PER_SECOND" envDefault:"5"`

	// Location is TimeZone resolved by Load.
	Location *time.Location `env:"-"`
}

// Load reads a .env file when one exists, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("TIME_ZONE: %w", err)
	}
	c.Location = loc

	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("TICK_INTERVAL must be positive"))
	}
	if c.TickInterval >= c.RoundInterval {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL (%s) must be shorter than ROUND_INTERVAL (%s)", c.TickInterval, c.RoundInterval))
	}
	if c.TickWorkers < 1 {
		errs = append(errs, errors.New("TICK_WORKERS must be at least 1"))
	}
	if c.DiscordToken != "" && c.DiscordRatePerSecond <= 0 {
		errs = append(errs, errors.New("DISCORD_RATE_PER_SECOND must be positive"))
	}
	return errors.Join(errs...)
}
