package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/username/notefolio/backend/src/logger"
)

// Provider priorities. Lower values are consulted first.
const (
	PriorityPrimary   = 1
	PrioritySecondary = 2
	PriorityTertiary  = 3
	PriorityDisabled  = 999
)

const (
	ProviderAlphaVantage = "alpha_vantage"
	ProviderYahooFinance = "yahoo_finance"
	ProviderStatic       = "static"
)

var ErrUnknownProvider = errors.New("unknown price provider")

type ProviderOptions struct {
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout"`
	BaseURL        string `json:"base_url,omitempty"`
}

type ProviderSettings struct {
	Enabled  bool            `json:"enabled"`
	Priority int             `json:"priority"`
	Config   ProviderOptions `json:"config"`
}

// Timeout returns the per-call deadline for the provider.
func (p ProviderSettings) Timeout() time.Duration {
	if p.Config.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.Config.TimeoutSeconds) * time.Second
}

type WaterfallSettings struct {
	Enabled                   bool `json:"enabled"`
	RetryDisabledAfterMinutes int  `json:"retry_disabled_after_minutes"`
	MaxRetriesPerProvider     int  `json:"max_retries_per_provider"`
	MaxErrors                 int  `json:"max_errors"`
	RetryBackoffMillis        int  `json:"retry_backoff_ms"`
}

func (w WaterfallSettings) Cooldown() time.Duration {
	return time.Duration(w.RetryDisabledAfterMinutes) * time.Minute
}

func (w WaterfallSettings) Backoff() time.Duration {
	return time.Duration(w.RetryBackoffMillis) * time.Millisecond
}

type FallbackSettings struct {
	ReturnZeroOnFailure  bool `json:"return_zero_on_failure"`
	CacheDurationMinutes int  `json:"cache_duration_minutes"`
}

func (f FallbackSettings) CacheDuration() time.Duration {
	return time.Duration(f.CacheDurationMinutes) * time.Minute
}

// PriceConfig mirrors price_provider_config.json.
type PriceConfig struct {
	Version   string                      `json:"version"`
	Providers map[string]ProviderSettings `json:"providers"`
	Waterfall WaterfallSettings           `json:"waterfall"`
	Fallback  FallbackSettings            `json:"fallback"`
}

func DefaultPriceConfig() PriceConfig {
	return PriceConfig{
		Version: "1.0",
		Providers: map[string]ProviderSettings{
			ProviderAlphaVantage: {
				Enabled:  true,
				Priority: PriorityPrimary,
				Config:   ProviderOptions{TimeoutSeconds: 10},
			},
			ProviderYahooFinance: {
				Enabled:  true,
				Priority: PrioritySecondary,
				Config:   ProviderOptions{TimeoutSeconds: 10},
			},
			ProviderStatic: {
				Enabled:  false,
				Priority: PriorityTertiary,
				Config:   ProviderOptions{TimeoutSeconds: 1},
			},
		},
		Waterfall: WaterfallSettings{
			Enabled:                   true,
			RetryDisabledAfterMinutes: 60,
			MaxRetriesPerProvider:     3,
			MaxErrors:                 5,
			RetryBackoffMillis:        250,
		},
		Fallback: FallbackSettings{
			ReturnZeroOnFailure:  true,
			CacheDurationMinutes: 5,
		},
	}
}

func (c PriceConfig) clone() PriceConfig {
	out := c
	out.Providers = make(map[string]ProviderSettings, len(c.Providers))
	for k, v := range c.Providers {
		out.Providers[k] = v
	}
	return out
}

// EnabledProviders lists enabled providers by ascending priority, ties broken by name.
func (c PriceConfig) EnabledProviders() []string {
	type entry struct {
		name     string
		priority int
	}
	var entries []entry
	for name, p := range c.Providers {
		if p.Enabled {
			entries = append(entries, entry{name, p.Priority})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].name < entries[j].name
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// mergePriceConfig overlays raw JSON on top of base. Provider entries are merged
// individually so a partial entry keeps the defaults it does not mention.
func mergePriceConfig(base PriceConfig, raw []byte) (PriceConfig, error) {
	merged := base.clone()

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return base, err
	}
	if v, ok := top["version"]; ok {
		if err := json.Unmarshal(v, &merged.Version); err != nil {
			return base, fmt.Errorf("version: %w", err)
		}
	}
	if v, ok := top["waterfall"]; ok {
		if err := json.Unmarshal(v, &merged.Waterfall); err != nil {
			return base, fmt.Errorf("waterfall: %w", err)
		}
	}
	if v, ok := top["fallback"]; ok {
		if err := json.Unmarshal(v, &merged.Fallback); err != nil {
			return base, fmt.Errorf("fallback: %w", err)
		}
	}
	if v, ok := top["providers"]; ok {
		var providers map[string]json.RawMessage
		if err := json.Unmarshal(v, &providers); err != nil {
			return base, fmt.Errorf("providers: %w", err)
		}
		for name, rawProvider := range providers {
			settings := merged.Providers[name]
			if err := json.Unmarshal(rawProvider, &settings); err != nil {
				return base, fmt.Errorf("provider %s: %w", name, err)
			}
			merged.Providers[name] = settings
		}
	}
	return merged, nil
}

// PriceConfigStore owns the price provider configuration file and serves
// consistent snapshots to concurrent readers.
type PriceConfigStore struct {
	mu       sync.RWMutex
	path     string
	cfg      PriceConfig
	modTime  time.Time
	envKeyAV string
}

// LoadPriceConfig reads path, merging it over the defaults. A missing file is
// created with defaults. An unreadable file falls back to defaults.
func LoadPriceConfig(path string, alphaVantageKey string) (*PriceConfigStore, error) {
	s := &PriceConfigStore{path: path, envKeyAV: alphaVantageKey}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPriceConfigStore builds an in-memory store, used when no file is wanted.
func NewPriceConfigStore(cfg PriceConfig) *PriceConfigStore {
	return &PriceConfigStore{cfg: cfg.clone()}
}

// Reload re-reads the configuration file.
func (s *PriceConfigStore) Reload() error {
	if s.path == "" {
		return nil
	}
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.L.Info("Price provider config not found, creating with defaults", "path", s.path)
		s.mu.Lock()
		s.cfg = s.withEnvDefaults(DefaultPriceConfig())
		s.mu.Unlock()
		return s.save()
	}
	if err != nil {
		return fmt.Errorf("stat price config %s: %w", s.path, err)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read price config %s: %w", s.path, err)
	}
	merged, err := mergePriceConfig(DefaultPriceConfig(), raw)
	if err != nil {
		logger.L.Error("Error loading price provider config, using defaults", "path", s.path, "error", err)
		merged = DefaultPriceConfig()
	}

	s.mu.Lock()
	s.cfg = s.withEnvDefaults(merged)
	s.modTime = info.ModTime()
	s.mu.Unlock()
	logger.L.Info("Loaded price provider config", "path", s.path, "enabledProviders", merged.EnabledProviders())
	return nil
}

// ReloadIfChanged reloads only when the file's modification time moved.
func (s *PriceConfigStore) ReloadIfChanged() (bool, error) {
	if s.path == "" {
		return false, nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}
	return true, s.Reload()
}

func (s *PriceConfigStore) withEnvDefaults(cfg PriceConfig) PriceConfig {
	if s.envKeyAV == "" {
		return cfg
	}
	if av, ok := cfg.Providers[ProviderAlphaVantage]; ok && av.Config.APIKey == "" {
		av.Config.APIKey = s.envKeyAV
		cfg.Providers[ProviderAlphaVantage] = av
	}
	return cfg
}

func (s *PriceConfigStore) save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		logger.L.Error("Error saving price provider config", "path", s.path, "error", err)
		return fmt.Errorf("write price config %s: %w", s.path, err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.mu.Lock()
		s.modTime = info.ModTime()
		s.mu.Unlock()
	}
	logger.L.Info("Saved price provider config", "path", s.path)
	return nil
}

// Snapshot returns a copy safe to use without holding the lock.
func (s *PriceConfigStore) Snapshot() PriceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.clone()
}

func (s *PriceConfigStore) Provider(name string) (ProviderSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.cfg.Providers[name]
	return p, ok
}

func (s *PriceConfigStore) updateProvider(name string, fn func(*ProviderSettings)) error {
	s.mu.Lock()
	p, ok := s.cfg.Providers[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	fn(&p)
	s.cfg.Providers[name] = p
	s.mu.Unlock()
	return s.save()
}

func (s *PriceConfigStore) SetProviderEnabled(name string, enabled bool) error {
	return s.updateProvider(name, func(p *ProviderSettings) { p.Enabled = enabled })
}

func (s *PriceConfigStore) SetProviderPriority(name string, priority int) error {
	return s.updateProvider(name, func(p *ProviderSettings) { p.Priority = priority })
}

func (s *PriceConfigStore) SetAPIKey(name, apiKey string) error {
	return s.updateProvider(name, func(p *ProviderSettings) { p.Config.APIKey = apiKey })
}

func (s *PriceConfigStore) UpdateWaterfall(w WaterfallSettings) error {
	s.mu.Lock()
	s.cfg.Waterfall = w
	s.mu.Unlock()
	return s.save()
}

func (s *PriceConfigStore) ResetToDefaults() error {
	s.mu.Lock()
	s.cfg = s.withEnvDefaults(DefaultPriceConfig())
	s.mu.Unlock()
	return s.save()
}

// Export returns the configuration with API keys masked.
func (s *PriceConfigStore) Export() PriceConfig {
	out := s.Snapshot()
	for name, p := range out.Providers {
		p.Config.APIKey = MaskAPIKey(p.Config.APIKey)
		out.Providers[name] = p
	}
	return out
}

// MaskAPIKey keeps the first and last four characters of long keys.
func MaskAPIKey(key string) string {
	switch {
	case key == "":
		return "Not Set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "***"
	}
}
