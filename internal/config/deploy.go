package config

import (
	"github.com/spf13/pflag"
)

// DeployConfig holds configuration for the deploy command.
type DeployConfig struct {
	Network    string
	TokensFile string
	TokensOut  string
	MockTokens []string
	Store      StoreConfig
	Owner      string
	MintCost   string
	Open       bool
	LogLevel   string
}

// LoadDeploy merges config file, environment variables, and flags into DeployConfig.
func LoadDeploy(cfgFile string, flags *pflag.FlagSet) (DeployConfig, error) {
	v := newViper()

	setStoreDefaults(v)
	v.SetDefault("network", "Ganache")
	v.SetDefault("mint-cost", "0")
	v.SetDefault("open", true)
	v.SetDefault("log-level", "info")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return DeployConfig{}, err
	}

	cfg := DeployConfig{
		Network:    v.GetString("network"),
		TokensFile: v.GetString("tokens-file"),
		TokensOut:  v.GetString("tokens-out"),
		MockTokens: getStringSlice(v, "mock-token"),
		Store:      storeConfig(v),
		Owner:      v.GetString("owner"),
		MintCost:   v.GetString("mint-cost"),
		Open:       v.GetBool("open"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
