package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"dgnmMarket/internal/model"
)

type fileTable struct {
	Version  uint64                 `yaml:"version"`
	Networks map[string][]fileToken `yaml:"networks"`
}

type fileToken struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// LoadFile reads a YAML token table.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token table: %w", err)
	}

	var table fileTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse token table: %w", err)
	}
	if len(table.Networks) == 0 {
		return nil, fmt.Errorf("token table %s has no networks", path)
	}

	tables := make(map[string][]model.Token, len(table.Networks))
	for network, entries := range table.Networks {
		tokens := make([]model.Token, 0, len(entries))
		for _, entry := range entries {
			if !common.IsHexAddress(entry.Address) {
				return nil, fmt.Errorf("token %s on %s: invalid address: %s", entry.Symbol, network, entry.Address)
			}
			tokens = append(tokens, model.Token{
				Symbol:   entry.Symbol,
				Address:  common.HexToAddress(entry.Address),
				Decimals: entry.Decimals,
			})
		}
		tables[network] = tokens
	}

	return New(table.Version, tables)
}

// WriteFile stores the registry as a YAML token table.
func WriteFile(path string, r *Registry) error {
	table := fileTable{
		Version:  r.version,
		Networks: make(map[string][]fileToken, len(r.networks)),
	}
	for network, tokens := range r.networks {
		entries := make([]fileToken, 0, len(tokens))
		for _, token := range tokens {
			entries = append(entries, fileToken{
				Symbol:   token.Symbol,
				Address:  token.Address.Hex(),
				Decimals: token.Decimals,
			})
		}
		table.Networks[network] = entries
	}

	data, err := yaml.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal token table: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create token table dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write token table tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename token table: %w", err)
	}
	return nil
}
