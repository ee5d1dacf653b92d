// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/farol/config.yaml",
	"/etc/farol/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "FAROL_CONFIG"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("FAROL_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps FAROL_-prefixed environment variable names (lowercased)
// to koanf config paths. Variables not in this table are ignored, which
// keeps unrelated process environment out of the config tree.
var envMappings = map[string]string{
	"farol_azdo_org_url":          "azure_devops.org_url",
	"farol_azdo_project":          "azure_devops.project",
	"farol_azdo_pat":              "azure_devops.pat",
	"farol_azdo_api_version":      "azure_devops.api_version",
	"farol_azdo_max_batch":        "azure_devops.max_batch",
	"farol_azdo_timeout":          "azure_devops.timeout",
	"farol_azdo_breaker_failures": "azure_devops.breaker_failures",
	"farol_azdo_breaker_open_for": "azure_devops.breaker_open_for",

	"farol_sync_work_item_type":     "sync.work_item_type",
	"farol_sync_batch_delay":        "sync.batch_delay",
	"farol_sync_rate_limit_backoff": "sync.rate_limit_backoff",
	"farol_sync_near_deadline_days": "sync.near_deadline_days",
	"farol_sync_cache_ttl":          "sync.cache_ttl",
	"farol_sync_refresh_interval":   "sync.refresh_interval",
	"farol_sync_utc_offset_hours":   "sync.utc_offset_hours",

	"farol_http_host":              "server.host",
	"farol_http_port":              "server.port",
	"farol_http_timeout":           "server.timeout",
	"farol_cors_origins":           "server.cors_origins",
	"farol_http_rate_limit_reqs":   "server.rate_limit_reqs",
	"farol_http_rate_limit_window": "server.rate_limit_window",

	"farol_log_level":  "logging.level",
	"farol_log_format": "logging.format",
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - FAROL_AZDO_ORG_URL -> azure_devops.org_url
//   - FAROL_SYNC_CACHE_TTL -> sync.cache_ttl
//   - FAROL_LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
