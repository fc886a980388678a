package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"legis/types"
)

const defaultConfigPath = "config.yaml"

type LoaderSettings struct {
	SourceDir      string        `yaml:"source_dir"`
	ArchiveDir     string        `yaml:"archive_dir"`
	BadDir         string        `yaml:"bad_dir"`
	MonitoringTime time.Duration `yaml:"monitoring_time"`
	// MetricsAddr is where `loader watch` serves /metrics; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Settings are the tunables kept in the YAML file.
type Settings struct {
	ConfidenceThreshold float64          `yaml:"confidence_threshold"`
	AdminConfidence     float64          `yaml:"admin_confidence"`
	ModalLimit          int              `yaml:"modal_limit"`
	Term                int              `yaml:"term"`
	GovernmentParties   map[int][]string `yaml:"government_parties"`
	Loader              LoaderSettings   `yaml:"loader"`
}

type Config struct {
	ServerAddr          string
	DatabaseURL         string
	ClerkSecretKey      string
	StripeSecretKey     string
	StripeWebhookSecret string
	RebuildHookURL      string
	LogLevel            slog.Level
	Settings            Settings
}

func defaults() Settings {
	return Settings{
		ConfidenceThreshold: 0.5,
		AdminConfidence:     1.0,
		ModalLimit:          5,
		Term:                10,
		GovernmentParties: map[int][]string{
			10: {"KO", "Lewica", "Polska2050-TD", "PSL-TD"},
		},
		Loader: LoaderSettings{
			SourceDir:      "data/source",
			ArchiveDir:     "data/archive",
			BadDir:         "data/bad",
			MonitoringTime: 5 * time.Second,
		},
	}
}

// Load reads the optional YAML settings file named by CONFIG_PATH (default
// config.yaml) and then applies environment variables on top.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	settings, err := LoadSettings(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		d := defaults()
		settings, err = &d, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerAddr:          envOr("SERVER_ADDR", ":8080"),
		DatabaseURL:         databaseURL(),
		ClerkSecretKey:      os.Getenv("CLERK_SECRET_KEY"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		RebuildHookURL:      envOr("REBUILD_HOOK_URL", os.Getenv("VERCEL_DEPLOY_HOOK_URL")),
		Settings:            *settings,
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", lvl, err)
		}
	}

	l := &cfg.Settings.Loader
	l.SourceDir = envOr("LOADER_SOURCE_DIR", l.SourceDir)
	l.ArchiveDir = envOr("LOADER_ARCHIVE_DIR", l.ArchiveDir)
	l.BadDir = envOr("LOADER_BAD_DIR", l.BadDir)
	l.MetricsAddr = envOr("LOADER_METRICS_ADDR", l.MetricsAddr)
	if v := os.Getenv("LOADER_MONITORING_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOADER_MONITORING_TIME %q: %w", v, err)
		}
		l.MonitoringTime = d
	}

	return cfg, nil
}

// LoadSettings decodes a YAML settings file over the defaults.
func LoadSettings(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	s := defaults()
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s Settings) validate() error {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold %v outside [0,1]", s.ConfidenceThreshold)
	}
	if s.AdminConfidence < 0 || s.AdminConfidence > 1 {
		return fmt.Errorf("admin_confidence %v outside [0,1]", s.AdminConfidence)
	}
	if s.ModalLimit < 0 {
		return fmt.Errorf("modal_limit must not be negative")
	}
	return nil
}

// GovernmentFor returns the governing parties of term.
func (s Settings) GovernmentFor(term int) []string {
	return s.GovernmentParties[term]
}

func (s Settings) LoaderConfig() types.Config {
	return types.Config{
		MonitoringTime: s.Loader.MonitoringTime,
		SourceDir:      s.Loader.SourceDir,
		ArchiveDir:     s.Loader.ArchiveDir,
		BadDir:         s.Loader.BadDir,
	}
}

func (s Settings) Public() types.PublicConfig {
	return types.PublicConfig{
		ConfidenceThreshold: s.ConfidenceThreshold,
		ModalLimit:          s.ModalLimit,
	}
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	port, _ := strconv.Atoi(envOr("PG_PORT", "5432"))
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
