package config

import "github.com/spf13/pflag"

// EventsConfig holds configuration for the events command.
type EventsConfig struct {
	Events string
	Types  []string
}

// LoadEvents merges config file, environment variables, and flags into EventsConfig.
func LoadEvents(cfgFile string, flags *pflag.FlagSet) (EventsConfig, error) {
	v := newViper()

	v.SetDefault("events", "./data/events.jsonl")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return EventsConfig{}, err
	}

	return EventsConfig{
		Events: v.GetString("events"),
		Types:  getStringSlice(v, "type"),
	}, nil
}
