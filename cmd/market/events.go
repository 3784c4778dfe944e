package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dgnmMarket/internal/config"
	"dgnmMarket/internal/storage"
)

func newEventsCmd() *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log written by serve",
		Args:  cobra.NoArgs,
		RunE:  runEvents,
	}
	eventsCmd.Flags().String("events", "./data/events.jsonl", "event JSONL path")
	eventsCmd.Flags().StringSlice("type", nil, "only print these event types (e.g. Sold,Withdrawn)")
	return eventsCmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEvents(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Events == "" {
		return fmt.Errorf("events path is required")
	}

	lines, err := storage.ReadJsonl(cfg.Events)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, line := range lines {
		if len(cfg.Types) > 0 {
			var head struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(line, &head); err != nil {
				return fmt.Errorf("event %d: %w", i+1, err)
			}
			if !matchesType(cfg.Types, head.Type) {
				continue
			}
		}
		fmt.Fprintf(out, "%s\n", line)
	}
	return nil
}

func matchesType(types []string, typ string) bool {
	for _, want := range types {
		if strings.EqualFold(want, typ) {
			return true
		}
	}
	return false
}
