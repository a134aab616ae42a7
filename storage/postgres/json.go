package postgres

import (
	"encoding/json"

	"github.com/hindsight-ai/hindsight/settings"
)

// accountToJSON converts account info to a JSON string for storage.
func accountToJSON(account settings.AccountInfo) string {
	b, _ := json.Marshal(account)
	return string(b)
}

// accountFromJSON parses a JSON string into account info.
func accountFromJSON(s string) settings.AccountInfo {
	var account settings.AccountInfo
	if s == "" || s == "null" {
		return account
	}
	_ = json.Unmarshal([]byte(s), &account)
	return account
}

// repositoriesToJSON converts repository configs to a JSON string for storage.
func repositoriesToJSON(repos []settings.RepositoryConfig) string {
	if len(repos) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(repos)
	return string(b)
}

// repositoriesFromJSON parses a JSON string into repository configs.
func repositoriesFromJSON(s string) []settings.RepositoryConfig {
	if s == "" || s == "null" {
		return nil
	}
	var repos []settings.RepositoryConfig
	if err := json.Unmarshal([]byte(s), &repos); err != nil {
		return nil
	}
	return repos
}

// globalToJSON converts global settings to a JSON string for storage.
func globalToJSON(global settings.GlobalSettings) string {
	b, _ := json.Marshal(global)
	return string(b)
}

// globalFromJSON parses a JSON string into global settings.
func globalFromJSON(s string) settings.GlobalSettings {
	var global settings.GlobalSettings
	if s == "" || s == "null" {
		return global
	}
	_ = json.Unmarshal([]byte(s), &global)
	return global
}
