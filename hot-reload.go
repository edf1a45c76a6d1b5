// hot-reload.go: dynamic configuration with Argus integration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotSettings are the cache parameters that can change at runtime without
// reconstructing the cache: the eviction byte budget, the entry TTL and
// the write codec. Dir and the calendar provider are fixed at New time.
type HotSettings struct {
	BudgetBytes int64
	TTLDays     int
	Codec       string
}

// HotConfig watches a configuration file and applies setting changes to a
// running cache.
type HotConfig struct {
	cache   *Cache
	watcher *argus.Watcher
	mu      sync.RWMutex
	current HotSettings

	// OnReload is called after settings are successfully applied.
	// Optional; must be fast and non-blocking.
	OnReload func(oldSettings, newSettings HotSettings)
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the configuration file to watch. Supports JSON, YAML,
	// TOML, HCL, INI and Properties formats.
	ConfigPath string

	// PollInterval is how often to check for changes.
	// Default: 1 second. Minimum: 100ms.
	PollInterval time.Duration

	// OnReload is called after settings are successfully applied.
	OnReload func(oldSettings, newSettings HotSettings)
}

// NewHotConfig creates a hot-reloadable configuration for a cache and
// starts watching the file.
//
// Example configuration file (YAML):
//
//	cache:
//	  budget_bytes: 2147483648
//	  ttl_days: 30
//	  codec: "zstd"
//
// Supported keys:
//   - cache.budget_bytes (int): eviction byte budget
//   - cache.ttl_days (int): entry time-to-live in days, 0 disables expiry
//   - cache.codec (string): compression codec for subsequent writes
func NewHotConfig(cache *Cache, opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, NewErrInvalidConfig("config_path is required")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = 1 * time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	hc := &HotConfig{
		cache:    cache,
		OnReload: opts.OnReload,
		current: HotSettings{
			BudgetBytes: cache.BudgetBytes(),
			TTLDays:     cache.TTLDays(),
			Codec:       cache.Codec(),
		},
	}

	argusConfig := argus.Config{
		PollInterval: opts.PollInterval,
	}
	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher

	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil // already started
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// Settings returns the settings currently applied (thread-safe).
func (hc *HotConfig) Settings() HotSettings {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.current
}

// handleConfigChange is called by Argus when the file changes.
func (hc *HotConfig) handleConfigChange(configData map[string]interface{}) {
	hc.mu.Lock()
	oldSettings := hc.current
	newSettings := hc.parseSettings(configData, oldSettings)
	hc.current = newSettings
	hc.mu.Unlock()

	hc.applyChanges(oldSettings, newSettings)

	if hc.OnReload != nil {
		hc.OnReload(oldSettings, newSettings)
	}
}

// parsePositiveInt64 extracts a positive integer from an interface value.
// Supports int, int64 and float64 (YAML/JSON decoders vary).
func parsePositiveInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return int64(v), true
		}
	case int64:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int64(v), true
		}
	}
	return 0, false
}

// parseNonNegativeInt extracts an integer >= 0 from an interface value.
func parseNonNegativeInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v >= 0 {
			return v, true
		}
	case int64:
		if v >= 0 {
			return int(v), true
		}
	case float64:
		if v >= 0 {
			return int(v), true
		}
	}
	return 0, false
}

// parseSettings extracts cache settings from Argus config data, keeping
// the previous value for any key that is absent or malformed.
func (hc *HotConfig) parseSettings(data map[string]interface{}, prev HotSettings) HotSettings {
	settings := prev

	cacheSection, ok := data["cache"].(map[string]interface{})
	if !ok {
		// The whole document may be the cache section.
		if _, hasBudget := data["budget_bytes"]; hasBudget {
			cacheSection = data
		} else {
			return settings
		}
	}

	if budget, ok := parsePositiveInt64(cacheSection["budget_bytes"]); ok {
		settings.BudgetBytes = budget
	}
	if ttl, ok := parseNonNegativeInt(cacheSection["ttl_days"]); ok {
		settings.TTLDays = ttl
	}
	if codec, ok := cacheSection["codec"].(string); ok && codec != "" {
		if _, err := codecFor(codec); err == nil {
			settings.Codec = codec
		} else {
			hc.cache.logger.Warn("ignoring unknown codec in reloaded config", "codec", codec)
			settings.Codec = prev.Codec
		}
	}

	return settings
}

// applyChanges applies the reloaded settings to the running cache. All
// three settings are safe to change between calls; none requires
// reconstructing the cache.
func (hc *HotConfig) applyChanges(oldSettings, newSettings HotSettings) {
	if newSettings.BudgetBytes != oldSettings.BudgetBytes {
		hc.cache.SetBudgetBytes(newSettings.BudgetBytes)
		hc.cache.logger.Info("budget updated", "budget_bytes", newSettings.BudgetBytes)
	}
	if newSettings.TTLDays != oldSettings.TTLDays {
		hc.cache.SetTTLDays(newSettings.TTLDays)
		hc.cache.logger.Info("ttl updated", "ttl_days", newSettings.TTLDays)
	}
	if newSettings.Codec != oldSettings.Codec {
		if err := hc.cache.SetCodec(newSettings.Codec); err != nil {
			hc.cache.logger.Warn("failed to switch codec", "codec", newSettings.Codec, "error", err)
			return
		}
		hc.cache.logger.Info("codec updated", "codec", newSettings.Codec)
	}
}
