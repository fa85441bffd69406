package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AccountConfig describes one trading account in the accounts file.
type AccountConfig struct {
	ID         string   `yaml:"id"`
	Exchange   string   `yaml:"exchange"` // currently only "bitget"
	APIKey     string   `yaml:"api_key"`
	APISecret  string   `yaml:"api_secret"`
	Passphrase string   `yaml:"passphrase"`
	MarginMode string   `yaml:"margin_mode"` // "isolated" or "crossed"
	Settle     string   `yaml:"settle"`      // settle currency, default USDT
	Symbols    []string `yaml:"symbols"`     // tracked symbols for position refresh
}

// AccountsFile is the top-level accounts.yaml document.
type AccountsFile struct {
	Accounts []AccountConfig `yaml:"accounts"`
}

// LoadAccounts reads and validates the accounts file.
func LoadAccounts(path string) ([]AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var file AccountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	if len(file.Accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s declares no accounts", path)
	}

	seen := make(map[string]bool, len(file.Accounts))
	for i := range file.Accounts {
		acc := &file.Accounts[i]
		if acc.ID == "" {
			return nil, fmt.Errorf("account %d: id is required", i)
		}
		// Ids are matched case-insensitively at dispatch time, so the
		// uniqueness check must fold case too.
		key := strings.ToLower(acc.ID)
		if seen[key] {
			return nil, fmt.Errorf("duplicate account id %q", acc.ID)
		}
		seen[key] = true

		if acc.Exchange == "" {
			acc.Exchange = "bitget"
		}
		if acc.Settle == "" {
			acc.Settle = "USDT"
		}
		if acc.MarginMode == "" {
			acc.MarginMode = "crossed"
		}
		if acc.MarginMode != "isolated" && acc.MarginMode != "crossed" {
			return nil, fmt.Errorf("account %s: invalid margin_mode %q", acc.ID, acc.MarginMode)
		}
	}
	return file.Accounts, nil
}
