package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets. They are never read from the YAML file.
const (
	EnvPostgresURL  = "AUTOROSTER_POSTGRES_URL"
	EnvRedisAddr    = "AUTOROSTER_REDIS_ADDR"
	EnvGenderAPIKey = "AUTOROSTER_GENDER_API_KEY"
)

const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"

	LockLocal    = "local"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

const defaultGenderAPIURL = "https://v2.namsor.com/NamSorAPIv2/api2/json/genderFullBatch"

// RosterLayout is the positional layout of a trip roster sheet
type RosterLayout struct {
	Tab         string `yaml:"tab,omitempty"`
	StartRow    int    `yaml:"startRow" validate:"min=1"`
	LastRow     int    `yaml:"lastRow" validate:"gtfield=StartRow"`
	NameColumn  string `yaml:"nameColumn" validate:"required,alpha,uppercase"`
	EmailColumn string `yaml:"emailColumn" validate:"required,alpha,uppercase"`
	DriveColumn string `yaml:"driveColumn" validate:"required,alpha,uppercase"`

	// ResetFormulas rewrites the helper formula columns (first name, surname, short name) when
	// the roster is cleared
	ResetFormulas bool `yaml:"resetFormulas"`
}

// LedgerConfig selects where priorities live and how mutations are serialized
type LedgerConfig struct {
	Backend     string        `yaml:"backend" validate:"oneof=sheets postgres"`
	Lock        string        `yaml:"lock" validate:"oneof=local redis postgres"`
	LockTimeout time.Duration `yaml:"lockTimeout" validate:"gt=0"`
	RedisKey    string        `yaml:"redisKey,omitempty"`

	// ClampBatch applies the zero floor to batch adjustments too
	ClampBatch bool `yaml:"clampBatch"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Config represents the application configuration
type Config struct {
	// DatabaseSheetID holds the audit and gender cache tables, and the priority table unless
	// PrioritySheetID is set
	DatabaseSheetID string `yaml:"databaseSheetID" validate:"required"`
	PrioritySheetID string `yaml:"prioritySheetID,omitempty"`
	EboardSheetID   string `yaml:"eboardSheetID" validate:"required"`

	EmailDomain     string  `yaml:"emailDomain,omitempty"`
	SeatsPerDriver  int     `yaml:"seatsPerDriver" validate:"min=1"`
	DefaultWaitlist int     `yaml:"defaultWaitlist" validate:"min=0"`
	DefaultPolicy   string  `yaml:"defaultPolicy" validate:"oneof=priority gender-tiered gender-global"`
	FemaleThreshold float64 `yaml:"femaleThreshold" validate:"gt=0,lt=1"`

	Roster RosterLayout `yaml:"roster"`
	Ledger LedgerConfig `yaml:"ledger"`
	HTTP   HTTPConfig   `yaml:"http"`

	GenderAPIURL string `yaml:"genderAPIURL" validate:"omitempty,url"`

	PostgresURL  string `yaml:"-"`
	RedisAddr    string `yaml:"-"`
	GenderAPIKey string `yaml:"-"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Defaults returns a Config with every optional field set
func Defaults() Config {
	return Config{
		SeatsPerDriver:  5,
		DefaultPolicy:   "priority",
		FemaleThreshold: 0.53,
		Roster: RosterLayout{
			StartRow:      7,
			LastRow:       200,
			NameColumn:    "A",
			EmailColumn:   "D",
			DriveColumn:   "F",
			ResetFormulas: true,
		},
		Ledger: LedgerConfig{
			Backend:     BackendSheets,
			Lock:        LockLocal,
			LockTimeout: 30 * time.Second,
		},
		HTTP:         HTTPConfig{Addr: ":8080"},
		GenderAPIURL: defaultGenderAPIURL,
	}
}

// LoadWithEnv loads autoroster_config.<env>.yaml, then applies secrets from the environment.
// A .env file in the current directory is loaded first if present.
func LoadWithEnv(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	configPath, err := findFile(configFileName(env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPostgresURL); v != "" {
		c.PostgresURL = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv(EnvGenderAPIKey); v != "" {
		c.GenderAPIKey = v
	}
}

// Validate validates the configuration struct and the backend combinations
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	needsPostgres := cfg.Ledger.Backend == BackendPostgres || cfg.Ledger.Lock == LockPostgres
	if needsPostgres && cfg.PostgresURL == "" {
		return fmt.Errorf("config validation failed: %s must be set for the postgres ledger backend or lock", EnvPostgresURL)
	}
	if cfg.Ledger.Lock == LockRedis && cfg.RedisAddr == "" {
		return fmt.Errorf("config validation failed: %s must be set for the redis lock", EnvRedisAddr)
	}

	return nil
}

// PrioritySpreadsheet returns the spreadsheet holding the sheets-backed priority ledger
func (c *Config) PrioritySpreadsheet() string {
	if c.PrioritySheetID != "" {
		return c.PrioritySheetID
	}
	return c.DatabaseSheetID
}

// GenderEnabled reports whether the gender classifier can be called
func (c *Config) GenderEnabled() bool {
	return c.GenderAPIURL != "" && c.GenderAPIKey != ""
}

func configFileName(env string) string {
	if env == "" {
		return "autoroster_config.yaml"
	}
	return "autoroster_config." + strings.ToLower(env) + ".yaml"
}

// findFile searches for name in the current directory, then ~/.autoroster, then the home directory
func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, dir := range []string{filepath.Join(homeDir, ".autoroster"), homeDir} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
