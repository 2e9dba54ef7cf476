// Package config loads the giveaway settings from defaults, an optional YAML
// file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"giveaway/internal/auth"
	"giveaway/internal/discard"
	"giveaway/internal/models"
	"giveaway/internal/services"
	"giveaway/internal/twitch"
)

// ErrNoSource is returned when no participant source was selected.
var ErrNoSource = errors.New("select at least one of --followers, --viewers or --subs")

// Config is the complete runtime configuration.
type Config struct {
	Channel        string  `yaml:"channel" validate:"required"`
	Followers      bool    `yaml:"followers"`
	Viewers        bool    `yaml:"viewers"`
	Subs           bool    `yaml:"subs"`
	DropModerators bool    `yaml:"drop_moderators"`
	ExtraTickets   bool    `yaml:"extra_tickets"`
	DiscardedPath  string  `yaml:"discarded" validate:"required"`
	Distribution   bool    `yaml:"distribution"`
	Trials         int     `yaml:"trials" validate:"min=1"`
	Seed           *uint64 `yaml:"seed"`
	Pause          bool    `yaml:"pause"`
	Debug          bool    `yaml:"debug"`
	Serve          string  `yaml:"serve" validate:"omitempty,hostname_port"`
	AppFile        string  `yaml:"app_file"`

	Twitch TwitchConfig `yaml:"twitch"`
}

// TwitchConfig holds credentials, endpoints and HTTP client tuning.
type TwitchConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserToken    string `yaml:"user_token"`

	HelixURL    string `yaml:"helix_url" validate:"required,url"`
	ChattersURL string `yaml:"chatters_url" validate:"required,contains=%s"`
	TokenURL    string `yaml:"token_url" validate:"required,url"`

	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	Retries           int           `yaml:"retries" validate:"min=0,max=10"`
	BackoffBase       time.Duration `yaml:"backoff_base" validate:"gt=0"`
	BackoffMax        time.Duration `yaml:"backoff_max" validate:"gtefield=BackoffBase"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" validate:"min=1"`
	PageSize          int           `yaml:"page_size" validate:"min=1,max=100"`
	MaxPages          int           `yaml:"max_pages" validate:"min=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		DiscardedPath: discard.DefaultPath,
		Trials:        services.DefaultTrials,
		AppFile:       "app",
		Twitch: TwitchConfig{
			HelixURL:          twitch.DefaultHelixURL,
			ChattersURL:       twitch.DefaultChattersURL,
			TokenURL:          auth.DefaultTokenURL,
			Timeout:           10 * time.Second,
			Retries:           3,
			BackoffBase:       500 * time.Millisecond,
			BackoffMax:        10 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			PageSize:          twitch.DefaultPageSize,
			MaxPages:          1000,
		},
	}
}

// Load builds the configuration from args (without the program name) and
// the environment as seen through getenv.
func Load(args []string, getenv func(string) string) (Config, error) {
	// The config file path is itself a flag, so find it before anything
	// else is applied.
	scratch := Default()
	var path string
	if err := parseArgs(newFlagSet(&scratch, &path, os.Stderr), &scratch, args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg, getenv)

	if err := parseArgs(newFlagSet(&cfg, &path, io.Discard), &cfg, args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SourceSet returns the enabled sources. --viewers enables both the
// viewers and moderators lists.
func (c Config) SourceSet() models.SourceSet {
	set := models.NewSourceSet()
	if c.Viewers {
		set[models.Viewers] = true
		set[models.Moderators] = true
	}
	if c.Followers {
		set[models.Followers] = true
	}
	if c.Subs {
		set[models.Subscribers] = true
	}
	return set
}

func (c Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !c.Followers && !c.Viewers && !c.Subs {
		return ErrNoSource
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := strings.TrimSpace(getenv("TWITCH_CLIENT_ID")); v != "" {
		cfg.Twitch.ClientID = v
	}
	if v := strings.TrimSpace(getenv("TWITCH_CLIENT_SECRET")); v != "" {
		cfg.Twitch.ClientSecret = v
	}
	if v := strings.TrimSpace(getenv("TWITCH_USER_TOKEN")); v != "" {
		cfg.Twitch.UserToken = v
	}
}

func newFlagSet(cfg *Config, configPath *string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("giveaway", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: giveaway [flags] CHANNEL")
		fs.PrintDefaults()
	}

	fs.BoolVar(&cfg.Followers, "followers", cfg.Followers, "add channel followers to the pool")
	fs.BoolVar(&cfg.Viewers, "viewers", cfg.Viewers, "add current viewers and moderators to the pool")
	fs.BoolVar(&cfg.Subs, "subs", cfg.Subs, "add channel subscribers to the pool (needs a user token)")
	fs.BoolVar(&cfg.DropModerators, "drop", cfg.DropModerators, "remove moderators from the pool")
	fs.BoolVar(&cfg.ExtraTickets, "extra", cfg.ExtraTickets, "give present viewers and moderators an extra ticket")
	fs.BoolVar(&cfg.ExtraTickets, "e", cfg.ExtraTickets, "shorthand for --extra")
	fs.StringVar(&cfg.DiscardedPath, "discarded", cfg.DiscardedPath, "file listing names to exclude, one per line")
	fs.BoolVar(&cfg.Distribution, "distribution", cfg.Distribution, "print the draw distribution instead of a single winner")
	fs.IntVar(&cfg.Trials, "trials", cfg.Trials, "number of draws for --distribution")
	fs.Func("seed", "seed the draw for a reproducible run", func(s string) error {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		cfg.Seed = &seed
		return nil
	})
	fs.BoolVar(&cfg.Pause, "pause", cfg.Pause, "wait for Enter before drawing")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose logging")
	fs.IntVar(&cfg.Twitch.MaxPages, "max-pages", cfg.Twitch.MaxPages,
		"stop with an error after this many pages per source; with 100 names per page the default covers 100000 followers (0 disables)")
	fs.StringVar(configPath, "config", *configPath, "YAML configuration file")
	fs.StringVar(&cfg.Serve, "serve", cfg.Serve, "serve the HTTP API on this address instead of drawing once")
	fs.StringVar(&cfg.AppFile, "app", cfg.AppFile, "file holding client_id:client_secret")
	return fs
}

// parseArgs accepts the channel before, between or after the flags.
func parseArgs(fs *flag.FlagSet, cfg *Config, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	var positional []string
	for fs.NArg() > 0 {
		positional = append(positional, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return err
		}
	}

	switch len(positional) {
	case 0:
	case 1:
		cfg.Channel = strings.TrimSpace(positional[0])
	default:
		return fmt.Errorf("expected one channel, got %q", positional)
	}
	return nil
}
