package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Unlimited is the range sentinel meaning "no distance limit".
const Unlimited = -1

// HardDepthCap bounds recursive planning regardless of the configured depth.
const HardDepthCap = 10

// Config holds all storage/crafting tuning.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Stations    StationConfig     `yaml:"stations"`
	Crafting    CraftingConfig    `yaml:"crafting"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StorageConfig holds storage access settings
type StorageConfig struct {
	// InventoryScanSlots is how many leading inventory slots belong to the
	// main inventory; the remainder (coins, ammo) is never scanned.
	InventoryScanSlots int          `yaml:"inventory_scan_slots"`
	Tiers              []TierConfig `yaml:"tiers"`
}

// TierConfig describes one progression tier.
type TierConfig struct {
	Name         string `yaml:"name"`
	StorageRange int    `yaml:"storage_range"` // tiles, -1 = unlimited
	StationRange int    `yaml:"station_range"` // tiles, -1 = unlimited
}

// StationConfig holds crafting station detection settings
type StationConfig struct {
	VanillaRange  int `yaml:"vanilla_range"`   // tiles covered by the host's own adjacency check
	MaxScanRadius int `yaml:"max_scan_radius"` // absolute cap for the extended scan
	MemoryTier    int `yaml:"memory_tier"`     // first tier that remembers stations
}

// CraftingConfig holds recursive crafting settings
type CraftingConfig struct {
	MaxDepth      int `yaml:"max_depth"`
	PlanCacheSize int `yaml:"plan_cache_size"`
}

// PersistenceConfig selects and configures the record store
type PersistenceConfig struct {
	Backend    string      `yaml:"backend"` // file, sqlite or redis
	Dir        string      `yaml:"dir"`
	SQLitePath string      `yaml:"sqlite_path"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultTiers is the progression ladder used when none is configured.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Name: "Wooden", StorageRange: 25, StationRange: 8},
		{Name: "Iron", StorageRange: 50, StationRange: 15},
		{Name: "Gold", StorageRange: 100, StationRange: 30},
		{Name: "Hallowed", StorageRange: 250, StationRange: 60},
		{Name: "Luminite", StorageRange: Unlimited, StationRange: Unlimited},
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.InventoryScanSlots == 0 {
		c.Storage.InventoryScanSlots = 50
	}
	if len(c.Storage.Tiers) == 0 {
		c.Storage.Tiers = DefaultTiers()
	}
	if c.Stations.VanillaRange == 0 {
		c.Stations.VanillaRange = 4
	}
	if c.Stations.MaxScanRadius == 0 {
		c.Stations.MaxScanRadius = 60
	}
	if c.Stations.MemoryTier == 0 {
		c.Stations.MemoryTier = 3
	}
	if c.Crafting.MaxDepth == 0 {
		c.Crafting.MaxDepth = 5
	}
	if c.Crafting.PlanCacheSize == 0 {
		c.Crafting.PlanCacheSize = 64
	}
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = "file"
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = "./data"
	}
	if c.Persistence.SQLitePath == "" {
		c.Persistence.SQLitePath = "./data/storagehub.db"
	}
	if c.Persistence.Redis.Prefix == "" {
		c.Persistence.Redis.Prefix = "storagehub"
	}
}

// Validate rejects settings the storage core cannot honour.
func (c *Config) Validate() error {
	if c.Storage.InventoryScanSlots < 0 {
		return fmt.Errorf("storage.inventory_scan_slots must be positive")
	}
	for i, t := range c.Storage.Tiers {
		if t.StorageRange < Unlimited || t.StationRange < Unlimited {
			return fmt.Errorf("storage.tiers[%d]: ranges must be >= -1", i)
		}
	}
	if c.Stations.MaxScanRadius < 0 || c.Stations.VanillaRange < 0 {
		return fmt.Errorf("stations: ranges must not be negative")
	}
	if c.Crafting.MaxDepth < 0 {
		return fmt.Errorf("crafting.max_depth must not be negative")
	}
	switch c.Persistence.Backend {
	case "file", "sqlite", "redis":
	default:
		return fmt.Errorf("persistence.backend %q is not one of file, sqlite, redis", c.Persistence.Backend)
	}
	return nil
}

// Tier returns the tier settings for level, clamped into the configured ladder.
func (c *Config) Tier(level int) TierConfig {
	tiers := c.Storage.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	if level < 0 {
		level = 0
	}
	if level >= len(tiers) {
		level = len(tiers) - 1
	}
	return tiers[level]
}

// MaxTier returns the highest tier level.
func (c *Config) MaxTier() int {
	if len(c.Storage.Tiers) == 0 {
		return len(DefaultTiers()) - 1
	}
	return len(c.Storage.Tiers) - 1
}

// EffectiveDepth returns the configured recursion depth clamped by HardDepthCap.
func (c *Config) EffectiveDepth() int {
	d := c.Crafting.MaxDepth
	if d <= 0 || d > HardDepthCap {
		return HardDepthCap
	}
	return d
}
