// Package config handles EmberQL configuration via environment variables.
//
// Configuration is loaded with LoadFromEnv() and should be checked with
// Validate() before use. Every field has a sensible default, so
// LoadFromEnv() can be called with no environment variables set at all —
// the result is a single-node cluster with query caching on and an empty
// cold-tier encryption password (the cold tier still encrypts, with a key
// derived from that empty password).
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	fmt.Printf("node %s on %s, %d partitions\n",
//		cfg.Cluster.NodeID, cfg.Cluster.BindAddress, cfg.Cluster.Partitions)
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all EmberQL configuration loaded from environment variables.
type Config struct {
	// Cluster membership and partition-ring settings
	Cluster ClusterConfig
	// Health monitoring (heartbeat/failure-detection) settings
	Health HealthConfig
	// Lifecycle classification defaults
	Lifecycle LifecycleConfig
	// Tier placement and cold-storage settings
	Placement PlacementConfig
	// Replication policy defaults
	Replication ReplicationConfig
	// Query engine settings (plan cache)
	Query QueryConfig
	// Logging
	Logging LoggingConfig
	// Runtime memory tuning (GOMEMLIMIT/GOGC)
	Memory MemoryConfig
}

// ClusterConfig holds local identity and ring settings.
type ClusterConfig struct {
	// NodeID is this node's cluster member id.
	NodeID string
	// BindAddress is the address peers use to reach this node.
	BindAddress string
	// SeedPeers is a comma-separated list of member ids to join at
	// startup; each entry is joined as an id with no address.
	SeedPeers []string
	// Partitions is the configured partition count (default 256). It is
	// validated and reported, but it is not passed to the cluster ring,
	// whose size is its virtual points per member times the member count.
	Partitions int
}

// HealthConfig holds heartbeat/failure-detection tuning.
type HealthConfig struct {
	HeartbeatInterval time.Duration
	FailureThreshold  int
	RecoveryTimeout   time.Duration
}

// LifecycleConfig holds defaults applied across the four classification
// tags; individual tag policies are still sourced from
// lifecycle.DefaultPolicies, these are operational knobs around them.
type LifecycleConfig struct {
	CleanupInterval time.Duration
}

// PlacementConfig holds tier-store settings.
type PlacementConfig struct {
	// ColdDataDir is the on-disk directory for the badger-backed cold tier.
	ColdDataDir string
	// ColdEncryptionPassword derives the cold tier's AES-256-GCM key.
	ColdEncryptionPassword string
	// MonitorInterval is loaded from the environment; the serve command's
	// tier-monitor task runs on its own fixed interval and does not read it.
	MonitorInterval time.Duration
}

// ReplicationConfig holds the default policy new replica sets use absent
// an explicit per-key override.
type ReplicationConfig struct {
	DefaultPolicy  string
	ConsistencyTick time.Duration
}

// QueryConfig holds query-engine tuning.
type QueryConfig struct {
	PlanCacheEnabled bool
	PlanCacheSize    int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MemoryConfig holds Go runtime memory tuning (GOMEMLIMIT/GOGC).
type MemoryConfig struct {
	// RuntimeLimit is the soft memory limit in bytes; 0 = unlimited.
	RuntimeLimit int64
	// RuntimeLimitStr is the human-readable form (e.g. "2GB").
	RuntimeLimitStr string
	// GCPercent controls GC aggressiveness (GOGC); 100 is the Go default.
	GCPercent int
}

// LoadFromEnv loads configuration from environment variables, applying
// defaults for anything unset. All EmberQL variables are prefixed
// EMBERQL_.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Cluster.NodeID = getEnv("EMBERQL_NODE_ID", defaultNodeID())
	cfg.Cluster.BindAddress = getEnv("EMBERQL_BIND_ADDRESS", "0.0.0.0:7700")
	cfg.Cluster.SeedPeers = getEnvStringSlice("EMBERQL_SEED_PEERS", nil)
	cfg.Cluster.Partitions = getEnvInt("EMBERQL_PARTITIONS", 256)

	cfg.Health.HeartbeatInterval = getEnvDuration("EMBERQL_HEARTBEAT_INTERVAL", 5*time.Second)
	cfg.Health.FailureThreshold = getEnvInt("EMBERQL_FAILURE_THRESHOLD", 3)
	cfg.Health.RecoveryTimeout = getEnvDuration("EMBERQL_RECOVERY_TIMEOUT", 30*time.Second)

	cfg.Lifecycle.CleanupInterval = getEnvDuration("EMBERQL_LIFECYCLE_CLEANUP_INTERVAL", 30*time.Second)

	cfg.Placement.ColdDataDir = getEnv("EMBERQL_COLD_DATA_DIR", "./data/cold")
	cfg.Placement.ColdEncryptionPassword = getEnv("EMBERQL_COLD_ENCRYPTION_PASSWORD", "")
	cfg.Placement.MonitorInterval = getEnvDuration("EMBERQL_TIER_MONITOR_INTERVAL", 15*time.Second)

	cfg.Replication.DefaultPolicy = getEnv("EMBERQL_REPLICATION_POLICY", "balanced")
	cfg.Replication.ConsistencyTick = getEnvDuration("EMBERQL_REPLICATION_CONSISTENCY_TICK", 10*time.Second)

	cfg.Query.PlanCacheEnabled = getEnvBool("EMBERQL_QUERY_CACHE_ENABLED", true)
	cfg.Query.PlanCacheSize = getEnvInt("EMBERQL_QUERY_CACHE_SIZE", 1000)

	cfg.Logging.Level = getEnv("EMBERQL_LOG_LEVEL", "INFO")
	cfg.Logging.Format = getEnv("EMBERQL_LOG_FORMAT", "json")
	cfg.Logging.Output = getEnv("EMBERQL_LOG_OUTPUT", "stdout")

	cfg.Memory.RuntimeLimitStr = getEnv("EMBERQL_MEMORY_LIMIT", "0")
	cfg.Memory.RuntimeLimit = parseMemorySize(cfg.Memory.RuntimeLimitStr)
	cfg.Memory.GCPercent = getEnvInt("EMBERQL_GC_PERCENT", 100)

	return cfg
}

// fileConfig mirrors the subset of Config that a YAML file may set. Only
// fields worth pinning at deploy time (cluster identity/seeds, cold-tier
// location, default replication policy) are exposed here; everything
// else is tuning better left to environment variables.
type fileConfig struct {
	Cluster struct {
		NodeID      string   `yaml:"node_id"`
		BindAddress string   `yaml:"bind_address"`
		SeedPeers   []string `yaml:"seed_peers"`
		Partitions  int      `yaml:"partitions"`
	} `yaml:"cluster"`
	Replication struct {
		DefaultPolicy string `yaml:"default_policy"`
	} `yaml:"replication"`
	Placement struct {
		ColdDataDir string `yaml:"cold_data_dir"`
	} `yaml:"placement"`
}

// LoadFromEnvOrFile loads a YAML file at path as the base configuration,
// then applies EMBERQL_* environment-variable overrides on top — an
// explicitly set environment variable always wins over the file, the
// same precedence a layered file-then-env config loader uses for its
// category-toggle config. A missing file is not an error: callers pass
// an empty path, or a path that doesn't exist yet, to fall back to pure
// LoadFromEnv defaults.
func LoadFromEnvOrFile(path string) (*Config, error) {
	cfg := LoadFromEnv()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if os.Getenv("EMBERQL_NODE_ID") == "" && fc.Cluster.NodeID != "" {
		cfg.Cluster.NodeID = fc.Cluster.NodeID
	}
	if os.Getenv("EMBERQL_BIND_ADDRESS") == "" && fc.Cluster.BindAddress != "" {
		cfg.Cluster.BindAddress = fc.Cluster.BindAddress
	}
	if os.Getenv("EMBERQL_SEED_PEERS") == "" && len(fc.Cluster.SeedPeers) > 0 {
		cfg.Cluster.SeedPeers = fc.Cluster.SeedPeers
	}
	if os.Getenv("EMBERQL_PARTITIONS") == "" && fc.Cluster.Partitions > 0 {
		cfg.Cluster.Partitions = fc.Cluster.Partitions
	}
	if os.Getenv("EMBERQL_REPLICATION_POLICY") == "" && fc.Replication.DefaultPolicy != "" {
		cfg.Replication.DefaultPolicy = fc.Replication.DefaultPolicy
	}
	if os.Getenv("EMBERQL_COLD_DATA_DIR") == "" && fc.Placement.ColdDataDir != "" {
		cfg.Placement.ColdDataDir = fc.Placement.ColdDataDir
	}

	return cfg, nil
}

// Validate checks the configuration for logical errors. Call it after
// LoadFromEnv and before using the Config.
func (c *Config) Validate() error {
	if c.Cluster.NodeID == "" {
		return fmt.Errorf("cluster node id must not be empty")
	}
	if c.Cluster.Partitions <= 0 {
		return fmt.Errorf("invalid partition count: %d", c.Cluster.Partitions)
	}
	if c.Health.FailureThreshold <= 0 {
		return fmt.Errorf("invalid failure threshold: %d", c.Health.FailureThreshold)
	}
	switch c.Replication.DefaultPolicy {
	case "minimal", "balanced", "maximum", "adaptive":
	default:
		return fmt.Errorf("unknown replication policy: %q", c.Replication.DefaultPolicy)
	}
	if c.Query.PlanCacheEnabled && c.Query.PlanCacheSize <= 0 {
		return fmt.Errorf("invalid query plan cache size: %d", c.Query.PlanCacheSize)
	}
	return nil
}

// String returns a safe, log-friendly representation of the Config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Node: %s, Bind: %s, Partitions: %d, ReplicationPolicy: %s}",
		c.Cluster.NodeID, c.Cluster.BindAddress, c.Cluster.Partitions, c.Replication.DefaultPolicy,
	)
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "node-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return host
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string. Supports
// "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// ApplyRuntimeMemory applies the runtime memory settings to the Go
// runtime. Call early in main(), before heavy allocations.
func (c *MemoryConfig) ApplyRuntimeMemory() {
	if c.RuntimeLimit > 0 {
		debug.SetMemoryLimit(c.RuntimeLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}
