package config

import (
	"time"

	"github.com/spf13/pflag"
)

// TokensConfig holds configuration for the tokens commands.
type TokensConfig struct {
	Network      string
	TokensFile   string
	RPCURL       string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadTokens merges config file, environment variables, and flags into TokensConfig.
func LoadTokens(cfgFile string, flags *pflag.FlagSet) (TokensConfig, error) {
	v := newViper()

	v.SetDefault("network", "Ganache")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "warn")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return TokensConfig{}, err
	}

	cfg := TokensConfig{
		Network:      v.GetString("network"),
		TokensFile:   v.GetString("tokens-file"),
		RPCURL:       v.GetString("rpc"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
