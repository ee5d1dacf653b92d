// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Package config loads and validates Farol configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for all Farol components.
type Config struct {
	AzureDevOps AzureDevOpsConfig `koanf:"azure_devops"`
	Sync        SyncConfig        `koanf:"sync"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// AzureDevOpsConfig holds the connection settings for the remote
// work-tracking service. The PAT is sent as a basic-auth bearer credential.
type AzureDevOpsConfig struct {
	// OrgURL is the organization base URL, e.g. https://dev.azure.com/acme.
	OrgURL string `koanf:"org_url" validate:"required,url"`

	// Project is the team project all queries are scoped to.
	Project string `koanf:"project" validate:"required"`

	// PAT is the personal access token used for authentication.
	PAT string `koanf:"pat" validate:"required"`

	// APIVersion is the REST api-version query parameter.
	APIVersion string `koanf:"api_version"`

	// MaxBatch is the hard per-call ceiling on hydrated work items.
	// Azure DevOps documents 200; only lower it for tests.
	MaxBatch int `koanf:"max_batch" validate:"gt=0,lte=200"`

	// Timeout is the HTTP client timeout for every remote call.
	Timeout time.Duration `koanf:"timeout"`

	// BreakerFailures is the consecutive-failure count that opens the
	// circuit breaker. 0 disables the breaker.
	BreakerFailures int `koanf:"breaker_failures"`

	// BreakerOpenFor is how long the breaker stays open before probing.
	BreakerOpenFor time.Duration `koanf:"breaker_open_for"`
}

// SyncConfig tunes the synchronization pipeline and consolidation.
type SyncConfig struct {
	// WorkItemType is the work item type the dashboard tracks.
	WorkItemType string `koanf:"work_item_type"`

	// BatchDelay is the fixed pacing delay between hydration chunks.
	BatchDelay time.Duration `koanf:"batch_delay"`

	// RateLimitBackoff is the fixed wait before the single retry of a
	// chunk that was answered with HTTP 429.
	RateLimitBackoff time.Duration `koanf:"rate_limit_backoff"`

	// NearDeadlineDays is the forward window for the near-deadline
	// partition.
	NearDeadlineDays int `koanf:"near_deadline_days" validate:"gte=0"`

	// CacheTTL is how long a consolidated payload is served from cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// RefreshInterval enables the background cache-warming service when
	// greater than zero.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// UTCOffsetHours is the fixed display offset applied when formatting
	// dates. Default -3 (Brasília time).
	UTCOffsetHours int `koanf:"utc_offset_hours" validate:"gte=-12,lte=14"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// DisplayLocation returns the fixed-offset location used to format dates
// for dashboard display.
func (c *SyncConfig) DisplayLocation() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.UTCOffsetHours), c.UTCOffsetHours*3600)
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		AzureDevOps: AzureDevOpsConfig{
			OrgURL:          "",
			Project:         "",
			PAT:             "",
			APIVersion:      "7.0",
			MaxBatch:        200,
			Timeout:         30 * time.Second,
			BreakerFailures: 3,
			BreakerOpenFor:  60 * time.Second,
		},
		Sync: SyncConfig{
			WorkItemType:     "Feature",
			BatchDelay:       500 * time.Millisecond,
			RateLimitBackoff: 5 * time.Second,
			NearDeadlineDays: 7,
			CacheTTL:         60 * time.Second,
			RefreshInterval:  0, // disabled by default
			UTCOffsetHours:   -3,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8312,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("config field %s failed rule %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config validation: %w", err)
	}

	if !strings.HasPrefix(c.AzureDevOps.OrgURL, "http://") && !strings.HasPrefix(c.AzureDevOps.OrgURL, "https://") {
		return fmt.Errorf("azure_devops.org_url must be an http(s) URL, got %q", c.AzureDevOps.OrgURL)
	}
	if c.Sync.BatchDelay < 0 || c.Sync.RateLimitBackoff < 0 {
		return fmt.Errorf("sync delays must not be negative")
	}
	if c.Sync.CacheTTL <= 0 {
		return fmt.Errorf("sync.cache_ttl must be positive, got %s", c.Sync.CacheTTL)
	}
	if c.Sync.RefreshInterval > 0 && c.Sync.RefreshInterval < c.Sync.CacheTTL/2 {
		// Refreshing much faster than the TTL just burns API quota.
		return fmt.Errorf("sync.refresh_interval %s is shorter than half the cache TTL %s",
			c.Sync.RefreshInterval, c.Sync.CacheTTL)
	}
	return nil
}
