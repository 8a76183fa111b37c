package config

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"raffle/internal/logger"
	"raffle/internal/raffle"
)

type Config struct {
	Raffle     Raffle               `toml:"raffle"`
	Storage    Storage              `toml:"storage"`
	Log        logger.Configuration `toml:"log"`
	HTTP       HTTP                 `toml:"http"`
	Randomness Randomness           `toml:"randomness"`
	Tracker    Tracker              `toml:"tracker"`
}

type Raffle struct {
	TicketPrice         uint64 `toml:"ticket_price"`
	MaxTicketsPerTx     uint64 `toml:"max_tickets_per_tx"`
	JackpotPercentage   uint64 `toml:"jackpot_percentage"`
	DurationSeconds     uint64 `toml:"duration_seconds"`
	MaxTickets          uint64 `toml:"max_tickets"`
	Organizer           string `toml:"organizer"`
	Decimals            int32  `toml:"decimals"`
	ClaimTimeoutSeconds uint64 `toml:"claim_timeout_seconds"`
}

type Storage struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type HTTP struct {
	Addr string `toml:"addr"`
}

type Randomness struct {
	Source string `toml:"source"`
	Beacon string `toml:"beacon"`
}

type Tracker struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	Keeper   string   `toml:"keeper"`
}

// Duration reads "30s"-style strings from TOML and the environment.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() *Config {
	return &Config{
		Raffle: Raffle{
			TicketPrice:         10_000_000_000_000_000, // 0.01 ether in wei
			MaxTicketsPerTx:     10,
			JackpotPercentage:   90,
			DurationSeconds:     7 * 24 * 3600,
			MaxTickets:          1000,
			Decimals:            18,
			ClaimTimeoutSeconds: 86400,
		},
		Storage: Storage{
			Driver: "sqlite",
			DSN:    "persistent.db",
		},
		Log: logger.Configuration{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
		Randomness: Randomness{
			Source: "crypto",
		},
		Tracker: Tracker{
			Enabled:  true,
			Interval: Duration{30 * time.Second},
		},
	}
}

// Load layers the defaults, the TOML file at path (optional), the dotenv
// file at envFile (missing file tolerated) and RAFFLE_* variables, in that order.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: decode %s", path)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "config: load %s", envFile)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	uints := map[string]*uint64{
		"RAFFLE_TICKET_PRICE":       &c.Raffle.TicketPrice,
		"RAFFLE_MAX_TICKETS_PER_TX": &c.Raffle.MaxTicketsPerTx,
		"RAFFLE_JACKPOT_PERCENTAGE": &c.Raffle.JackpotPercentage,
		"RAFFLE_DURATION":           &c.Raffle.DurationSeconds,
		"RAFFLE_MAX_TICKETS":        &c.Raffle.MaxTickets,
		"RAFFLE_CLAIM_TIMEOUT":      &c.Raffle.ClaimTimeoutSeconds,
	}
	for key, target := range uints {
		value, ok := lookup(key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "config: %s", key)
		}
		*target = parsed
	}

	strs := map[string]*string{
		"RAFFLE_ORGANIZER":         &c.Raffle.Organizer,
		"RAFFLE_STORAGE_DRIVER":    &c.Storage.Driver,
		"RAFFLE_STORAGE_DSN":       &c.Storage.DSN,
		"RAFFLE_LOG_LEVEL":         &c.Log.Level,
		"RAFFLE_LOG_FILE":          &c.Log.LogFile,
		"RAFFLE_LOG_ERROR_FILE":    &c.Log.ErrorFile,
		"RAFFLE_HTTP_ADDR":         &c.HTTP.Addr,
		"RAFFLE_RANDOMNESS_SOURCE": &c.Randomness.Source,
		"RAFFLE_RANDOMNESS_BEACON": &c.Randomness.Beacon,
		"RAFFLE_TRACKER_KEEPER":    &c.Tracker.Keeper,
	}
	for key, target := range strs {
		if value, ok := lookup(key); ok {
			*target = strings.TrimSpace(value)
		}
	}

	if value, ok := lookup("RAFFLE_DECIMALS"); ok {
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
		if err != nil {
			return errors.Wrap(err, "config: RAFFLE_DECIMALS")
		}
		c.Raffle.Decimals = int32(parsed)
	}
	if value, ok := lookup("RAFFLE_TRACKER_INTERVAL"); ok {
		if err := c.Tracker.Interval.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
			return errors.Wrap(err, "config: RAFFLE_TRACKER_INTERVAL")
		}
	}
	if value, ok := lookup("RAFFLE_TRACKER_ENABLED"); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return errors.Wrap(err, "config: RAFFLE_TRACKER_ENABLED")
		}
		c.Tracker.Enabled = parsed
	}
	return nil
}

// RaffleConfig converts the raffle section into the engine's creation parameters.
func (c *Config) RaffleConfig() (raffle.Config, error) {
	organizer, err := raffle.ParseAccount(c.Raffle.Organizer)
	if err != nil {
		return raffle.Config{}, errors.Wrap(err, "config: organizer")
	}
	rc := raffle.Config{
		TicketPrice:       c.Raffle.TicketPrice,
		MaxTicketsPerTx:   c.Raffle.MaxTicketsPerTx,
		JackpotPercentage: c.Raffle.JackpotPercentage,
		RaffleDuration:    c.Raffle.DurationSeconds,
		MaxTickets:        c.Raffle.MaxTickets,
		Organizer:         organizer,
	}
	return rc, rc.Validate()
}

// Keeper is the account the tracker closes the raffle as; it defaults to the organizer.
func (c *Config) Keeper() (raffle.Account, error) {
	if c.Tracker.Keeper == "" {
		return raffle.ParseAccount(c.Raffle.Organizer)
	}
	return raffle.ParseAccount(c.Tracker.Keeper)
}

func (c *Config) BeaconValue() ([]byte, error) {
	value, err := hex.DecodeString(strings.TrimPrefix(c.Randomness.Beacon, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "config: randomness beacon")
	}
	return value, nil
}

func (c *Config) Validate() error {
	if _, err := c.RaffleConfig(); err != nil {
		return err
	}
	if c.Raffle.Decimals < 0 || c.Raffle.Decimals > 36 {
		return errors.Wrapf(raffle.ErrInvalidConfig, "config: decimals %d out of range", c.Raffle.Decimals)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Wrapf(raffle.ErrInvalidConfig, "config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Randomness.Source {
	case "crypto":
	case "beacon":
		value, err := c.BeaconValue()
		if err != nil {
			return err
		}
		if len(value) == 0 {
			return errors.Wrap(raffle.ErrInvalidConfig, "config: beacon source needs a beacon value")
		}
	default:
		return errors.Wrapf(raffle.ErrInvalidConfig, "config: unknown randomness source %q", c.Randomness.Source)
	}
	if c.Tracker.Enabled {
		if c.Tracker.Interval.Duration <= 0 {
			return errors.Wrap(raffle.ErrInvalidConfig, "config: tracker interval must be positive")
		}
		if _, err := c.Keeper(); err != nil {
			return errors.Wrap(err, "config: tracker keeper")
		}
	}
	return nil
}
