// Package config handles environment-based configuration for Aegis.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete Aegis configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Docker   DockerConfig
	Probes   ProbesConfig
	Healing  HealingConfig
	Monitor  MonitorConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string
	Port string
	Mode string // "debug" or "release"
}

// DatabaseConfig contains healing history database settings.
// An empty path keeps history in a process-lifetime in-memory database.
type DatabaseConfig struct {
	Path string
}

// DockerConfig contains Docker daemon settings.
type DockerConfig struct {
	Host string
}

// EndpointConfig describes how a critical service is reached on the network.
type EndpointConfig struct {
	Host      string
	Port      int
	Path      string // non-empty selects an HTTP probe instead of TCP
	Container string // container restarted when the service is unreachable
}

// ProbesConfig contains the component lists and thresholds for health checks.
type ProbesConfig struct {
	Containers    []string
	Services      []string
	Endpoints     map[string]EndpointConfig
	CriticalFiles []string

	CPUThreshold    float64
	DiskCriticalPct float64
	DiskDegradedPct float64
	MemoryLowWaterMB int
	Timeout         time.Duration
	Concurrency     int
}

// HealingConfig contains remediation execution settings.
type HealingConfig struct {
	ActionTimeout time.Duration
	BackupDir     string // source directory for file restores
	LogDir        string // rotated during disk cleanup
}

// MonitorConfig contains the background monitor loop settings.
type MonitorConfig struct {
	Enabled      bool
	Interval     time.Duration
	AutoHeal     bool          // run remediation, not just checks, each round
	HistoryMaxAge time.Duration // retention sweep for healing history
}

// defaultEndpoints is the built-in service resolution table. Entries can be
// overridden or extended through AEGIS_SERVICE_ENDPOINTS.
func defaultEndpoints() map[string]EndpointConfig {
	return map[string]EndpointConfig{
		"redis":    {Host: "localhost", Port: 6379, Container: "redis"},
		"postgres": {Host: "localhost", Port: 5432, Container: "postgres"},
		"ollama":   {Host: "localhost", Port: 11434, Path: "/api/tags", Container: "ollama"},
		"api":      {Host: "localhost", Port: 8000, Path: "/health", Container: "api"},
	}
}

// Load reads configuration from environment variables with sensible defaults.
// All environment variables use the AEGIS_ prefix.
//
// Configuration variables:
//   - AEGIS_SERVER_HOST (default: "0.0.0.0")
//   - AEGIS_SERVER_PORT (default: "8090")
//   - AEGIS_SERVER_MODE (default: "debug")
//   - AEGIS_DB_PATH (default: "" — in-memory history)
//   - AEGIS_DOCKER_HOST (default: "" — DOCKER_HOST env or the unix socket)
//   - AEGIS_CONTAINERS (default: "redis,postgres,ollama")
//   - AEGIS_SERVICES (default: "redis,postgres,ollama,api")
//   - AEGIS_SERVICE_ENDPOINTS (comma-separated "name=host:port[/path][@container]")
//   - AEGIS_CRITICAL_FILES (default: ".env,docker-compose.yml")
//   - AEGIS_CPU_THRESHOLD (default: "80")
//   - AEGIS_DISK_CRITICAL_PCT (default: "90")
//   - AEGIS_DISK_DEGRADED_PCT (default: "80")
//   - AEGIS_MEMORY_LOW_WATER_MB (default: "500")
//   - AEGIS_PROBE_TIMEOUT (default: "5s")
//   - AEGIS_PROBE_CONCURRENCY (default: "8")
//   - AEGIS_ACTION_TIMEOUT (default: "60s")
//   - AEGIS_BACKUP_DIR (default: "./backups")
//   - AEGIS_LOG_DIR (default: "./logs")
//   - AEGIS_MONITOR_ENABLED (default: "true")
//   - AEGIS_MONITOR_INTERVAL (default: "60s")
//   - AEGIS_MONITOR_AUTO_HEAL (default: "false")
//   - AEGIS_HISTORY_MAX_AGE (default: "168h")
//
// Returns an error if validation fails.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("AEGIS_SERVER_HOST", "0.0.0.0"),
			Port: getEnv("AEGIS_SERVER_PORT", "8090"),
			Mode: getEnv("AEGIS_SERVER_MODE", "debug"),
		},
		Database: DatabaseConfig{
			Path: os.Getenv("AEGIS_DB_PATH"),
		},
		Docker: DockerConfig{
			Host: os.Getenv("AEGIS_DOCKER_HOST"),
		},
		Probes: ProbesConfig{
			Containers:       getEnvList("AEGIS_CONTAINERS", []string{"redis", "postgres", "ollama"}),
			Services:         getEnvList("AEGIS_SERVICES", []string{"redis", "postgres", "ollama", "api"}),
			Endpoints:        loadEndpoints(),
			CriticalFiles:    getEnvList("AEGIS_CRITICAL_FILES", []string{".env", "docker-compose.yml"}),
			CPUThreshold:     getEnvFloat("AEGIS_CPU_THRESHOLD", 80.0),
			DiskCriticalPct:  getEnvFloat("AEGIS_DISK_CRITICAL_PCT", 90.0),
			DiskDegradedPct:  getEnvFloat("AEGIS_DISK_DEGRADED_PCT", 80.0),
			MemoryLowWaterMB: getEnvInt("AEGIS_MEMORY_LOW_WATER_MB", 500),
			Timeout:          getEnvDuration("AEGIS_PROBE_TIMEOUT", 5*time.Second),
			Concurrency:      getEnvInt("AEGIS_PROBE_CONCURRENCY", 8),
		},
		Healing: HealingConfig{
			ActionTimeout: getEnvDuration("AEGIS_ACTION_TIMEOUT", 60*time.Second),
			BackupDir:     getEnv("AEGIS_BACKUP_DIR", "./backups"),
			LogDir:        getEnv("AEGIS_LOG_DIR", "./logs"),
		},
		Monitor: MonitorConfig{
			Enabled:       getEnvBool("AEGIS_MONITOR_ENABLED", true),
			Interval:      getEnvDuration("AEGIS_MONITOR_INTERVAL", 60*time.Second),
			AutoHeal:      getEnvBool("AEGIS_MONITOR_AUTO_HEAL", false),
			HistoryMaxAge: getEnvDuration("AEGIS_HISTORY_MAX_AGE", 168*time.Hour),
		},
	}

	// Validate configuration
	if err := validate(cfg); err != nil {
		log.Printf("Configuration validation failed: %v", err)
		return nil, errors.New("invalid configuration")
	}

	// Log loaded configuration
	log.Printf("Configuration loaded:")
	log.Printf("  Server: %s:%s (mode: %s)", cfg.Server.Host, cfg.Server.Port, cfg.Server.Mode)
	if cfg.Database.Path == "" {
		log.Printf("  History: in-memory (process lifetime)")
	} else {
		log.Printf("  History: %s", cfg.Database.Path)
	}
	if cfg.Docker.Host != "" {
		log.Printf("  Docker Host: %s", cfg.Docker.Host)
	}
	log.Printf("  Probes: containers=%v, services=%v, files=%v",
		cfg.Probes.Containers, cfg.Probes.Services, cfg.Probes.CriticalFiles)
	log.Printf("  Thresholds: cpu=%.0f%%, disk=%.0f/%.0f%%, memory_low_water=%dMB",
		cfg.Probes.CPUThreshold, cfg.Probes.DiskDegradedPct, cfg.Probes.DiskCriticalPct,
		cfg.Probes.MemoryLowWaterMB)
	log.Printf("  Monitor: enabled=%v, interval=%v, auto_heal=%v",
		cfg.Monitor.Enabled, cfg.Monitor.Interval, cfg.Monitor.AutoHeal)

	return cfg, nil
}

// validate checks if the configuration is valid.
func validate(cfg *Config) error {
	if cfg.Probes.CPUThreshold <= 0 || cfg.Probes.CPUThreshold > 100 {
		return errors.New("CPU threshold must be between 0 and 100")
	}
	if cfg.Probes.DiskCriticalPct <= 0 || cfg.Probes.DiskCriticalPct > 100 {
		return errors.New("disk critical threshold must be between 0 and 100")
	}
	if cfg.Probes.DiskDegradedPct <= 0 || cfg.Probes.DiskDegradedPct > cfg.Probes.DiskCriticalPct {
		return errors.New("disk degraded threshold must be between 0 and the critical threshold")
	}
	if cfg.Probes.Timeout < time.Second {
		return errors.New("probe timeout must be at least 1 second")
	}
	if cfg.Probes.Concurrency < 1 {
		return errors.New("probe concurrency must be at least 1")
	}
	if cfg.Monitor.Enabled && cfg.Monitor.Interval < time.Second {
		return errors.New("monitor interval must be at least 1 second")
	}
	return nil
}

// loadEndpoints merges AEGIS_SERVICE_ENDPOINTS entries over the built-in
// service table. Malformed entries are logged and skipped.
func loadEndpoints() map[string]EndpointConfig {
	endpoints := defaultEndpoints()
	raw := os.Getenv("AEGIS_SERVICE_ENDPOINTS")
	if raw == "" {
		return endpoints
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, ep, err := parseEndpoint(entry)
		if err != nil {
			log.Printf("Warning: skipping malformed service endpoint %q: %v", entry, err)
			continue
		}
		endpoints[name] = ep
	}
	return endpoints
}

// parseEndpoint parses "name=host:port[/path][@container]".
func parseEndpoint(entry string) (string, EndpointConfig, error) {
	name, rest, ok := strings.Cut(entry, "=")
	if !ok || name == "" {
		return "", EndpointConfig{}, errors.New("missing name")
	}

	rest, container, _ := strings.Cut(rest, "@")
	addr, path, hasPath := strings.Cut(rest, "/")
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok || host == "" {
		return "", EndpointConfig{}, errors.New("missing host:port")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", EndpointConfig{}, fmt.Errorf("invalid port %q", portStr)
	}

	ep := EndpointConfig{Host: host, Port: port, Container: container}
	if hasPath {
		ep.Path = "/" + path
	}
	if ep.Container == "" {
		ep.Container = name
	}
	return name, ep, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable or returns a default value.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getEnvInt retrieves an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Printf("Warning: invalid float value for %s: %s, using default: %.2f", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid boolean value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value.
// Accepts values like "30s", "5m", "1h"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}
