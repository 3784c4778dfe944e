package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends accepted by StoreConfig.Backend.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// StoreConfig selects and configures the ledger store.
type StoreConfig struct {
	Backend    string
	BadgerPath string
	PGDSN      string
	Migrate    bool
}

// Validate checks that the selected backend has what it needs.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case StoreMemory:
		return nil
	case StoreBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("badger path is required")
		}
		return nil
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown store %q (memory, badger, postgres)", c.Backend)
	}
}

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Listen           string
	Network          string
	TokensFile       string
	Store            StoreConfig
	Events           string
	Collectors       []string
	Owner            string
	MintCost         string
	ShutdownTimeout  time.Duration
	BadgerGCInterval time.Duration
	LogLevel         string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v := newViper()

	setStoreDefaults(v)
	v.SetDefault("listen", ":8080")
	v.SetDefault("network", "Ganache")
	v.SetDefault("events", "./data/events.jsonl")
	v.SetDefault("mint-cost", "0")
	v.SetDefault("shutdown-timeout", 10*time.Second)
	v.SetDefault("badger-gc-interval", 5*time.Minute)
	v.SetDefault("log-level", "info")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Listen:           v.GetString("listen"),
		Network:          v.GetString("network"),
		TokensFile:       v.GetString("tokens-file"),
		Store:            storeConfig(v),
		Events:           v.GetString("events"),
		Collectors:       getStringSlice(v, "collectors"),
		Owner:            v.GetString("owner"),
		MintCost:         v.GetString("mint-cost"),
		ShutdownTimeout:  v.GetDuration("shutdown-timeout"),
		BadgerGCInterval: v.GetDuration("badger-gc-interval"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func setStoreDefaults(v *viper.Viper) {
	v.SetDefault("store", StoreMemory)
	v.SetDefault("badger-path", "./data/ledger")
	v.SetDefault("migrate", true)
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Backend:    strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		BadgerPath: v.GetString("badger-path"),
		PGDSN:      v.GetString("pg-dsn"),
		Migrate:    v.GetBool("migrate"),
	}
}

func readConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
