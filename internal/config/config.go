// Package config provides configuration management for kryzon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmgilman/kryzon/internal/container"
	"github.com/jmgilman/kryzon/internal/instance"
	"github.com/jmgilman/kryzon/internal/ports"
	"github.com/jmgilman/kryzon/internal/registry"
	"github.com/jmgilman/kryzon/internal/sweeper"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/kryzon"
	DefaultConfigFile = "config.yaml"
	DefaultDataDir    = ".local/share/kryzon"
)

// Database drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey    = errors.New("invalid configuration key")
	ErrInvalidValue  = errors.New("invalid configuration value")
	ErrInvalidMemory = errors.New("invalid memory size")
	ErrNoEditor      = errors.New("$EDITOR is not set")
)

// enumKeys lists the allowed values for keys with a fixed set of choices.
var enumKeys = map[string][]string{
	"database.driver": {DriverFile, DriverPostgres},
	"log.level":       {"debug", "info", "warn", "error"},
	"log.format":      {"text", "json"},
}

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full kryzon configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Challenges ChallengesConfig `mapstructure:"challenges"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Ports      PortsConfig      `mapstructure:"ports"`
	Instances  InstancesConfig  `mapstructure:"instances"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Registry   RegistryConfig   `mapstructure:"registry"`
}

// DatabaseConfig selects the instance store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=file postgres"`
	URL    string `mapstructure:"url" validate:"required_if=Driver postgres"`
	Path   string `mapstructure:"path" validate:"required_if=Driver file"`
}

// ChallengesConfig locates the YAML challenge catalog used with the file
// driver. The postgres driver reads the challenges table instead.
type ChallengesConfig struct {
	Path string `mapstructure:"path"`
}

// RuntimeConfig holds container engine configuration.
type RuntimeConfig struct {
	Host         string        `mapstructure:"host"`
	Network      string        `mapstructure:"network" validate:"required"`
	Subnet       string        `mapstructure:"subnet" validate:"required,cidrv4"`
	Gateway      string        `mapstructure:"gateway" validate:"required,ipv4"`
	Bridge       string        `mapstructure:"bridge" validate:"required,max=15"`
	Memory       string        `mapstructure:"memory" validate:"required"`
	CPUShares    int64         `mapstructure:"cpu_shares" validate:"min=2"`
	PidsLimit    int64         `mapstructure:"pids_limit" validate:"min=1"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout" validate:"gt=0"`
	CallTimeout  time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	StartTimeout time.Duration `mapstructure:"start_timeout" validate:"gt=0"`
	PullTimeout  time.Duration `mapstructure:"pull_timeout" validate:"gt=0"`
	HealthCheck  bool          `mapstructure:"health_check"`
}

// MemoryBytes parses the human-readable memory limit.
func (r *RuntimeConfig) MemoryBytes() (int64, error) {
	n, err := units.RAMInBytes(r.Memory)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMemory, r.Memory)
	}
	return n, nil
}

// PortsConfig holds the host port range handed to instances.
type PortsConfig struct {
	Start int `mapstructure:"start" validate:"min=1,max=65535"`
	End   int `mapstructure:"end" validate:"min=1,max=65535,gtefield=Start"`
}

// InstancesConfig holds lifecycle policy.
type InstancesConfig struct {
	MaxPerUser     int           `mapstructure:"max_per_user" validate:"min=1"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl" validate:"gte=1m"`
	MaxExtendHours int           `mapstructure:"max_extend_hours" validate:"min=1,max=24"`
	Domain         string        `mapstructure:"domain" validate:"required,hostname"`
	Traefik        bool          `mapstructure:"traefik"`
}

// SweeperConfig holds reconciliation scheduling.
type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=1s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// MetricsConfig holds the metrics listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// RegistryConfig holds image registry client configuration.
type RegistryConfig struct {
	Insecure bool          `mapstructure:"insecure"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := c.Runtime.MemoryBytes(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Database.Driver == DriverFile && c.Challenges.Path == "" {
		return fmt.Errorf("%w: challenges.path is required with the file driver", ErrInvalidValue)
	}
	return nil
}

// DockerConfig converts the runtime section for the Docker adapter.
func (c *Config) DockerConfig() (container.DockerConfig, error) {
	memory, err := c.Runtime.MemoryBytes()
	if err != nil {
		return container.DockerConfig{}, err
	}
	return container.DockerConfig{
		Host: c.Runtime.Host,
		Network: container.NetworkConfig{
			Name:    c.Runtime.Network,
			Subnet:  c.Runtime.Subnet,
			Gateway: c.Runtime.Gateway,
			Bridge:  c.Runtime.Bridge,
		},
		Memory:      memory,
		CPUShares:   c.Runtime.CPUShares,
		PidsLimit:   c.Runtime.PidsLimit,
		StopTimeout: c.Runtime.StopTimeout,
		CallTimeout: c.Runtime.CallTimeout,
		PullTimeout: c.Runtime.PullTimeout,
		HealthCheck: c.Runtime.HealthCheck,
		Traefik:     c.Instances.Traefik,
		Domain:      c.Instances.Domain,
	}, nil
}

// ManagerConfig converts the instances section for the lifecycle manager.
func (c *Config) ManagerConfig() instance.ManagerConfig {
	return instance.ManagerConfig{
		MaxPerUser:     c.Instances.MaxPerUser,
		DefaultTTL:     c.Instances.DefaultTTL,
		MaxExtendHours: c.Instances.MaxExtendHours,
		Domain:         c.Instances.Domain,
		StartTimeout:   c.Runtime.StartTimeout,
	}
}

// SweepConfig converts the sweeper section for the reconciliation sweeper.
func (c *Config) SweepConfig() sweeper.Config {
	return sweeper.Config{
		Interval:     c.Sweeper.Interval,
		MaxPerUser:   c.Instances.MaxPerUser,
		StartTimeout: c.Runtime.StartTimeout,
	}
}

// Loader provides configuration loading and saving.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a configuration loader for path, or for
// ~/.config/kryzon/config.yaml when path is empty.
func NewLoader(path string) (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configPath := path
	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix("KRYZON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind the conventional platform variables.
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("database.url", "KRYZON_DATABASE_URL", "DATABASE_URL")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("instances.max_per_user", "KRYZON_INSTANCES_MAX_PER_USER", "MAX_INSTANCES_PER_USER")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("instances.domain", "KRYZON_INSTANCES_DOMAIN", "CTF_DOMAIN")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("runtime.host", "KRYZON_RUNTIME_HOST", "DOCKER_HOST")

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: home,
	}

	// Set defaults before any config reading
	l.setDefaults()

	return l, nil
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("database.driver", DriverFile)
	l.v.SetDefault("database.url", "")
	l.v.SetDefault("database.path", "~/"+DefaultDataDir+"/instances.json")
	l.v.SetDefault("challenges.path", "~/"+DefaultConfigDir+"/challenges.yaml")
	l.v.SetDefault("runtime.host", "")
	l.v.SetDefault("runtime.network", container.DefaultNetworkName)
	l.v.SetDefault("runtime.subnet", container.DefaultSubnet)
	l.v.SetDefault("runtime.gateway", container.DefaultGateway)
	l.v.SetDefault("runtime.bridge", container.DefaultBridgeName)
	l.v.SetDefault("runtime.memory", units.BytesSize(container.DefaultMemory))
	l.v.SetDefault("runtime.cpu_shares", container.DefaultCPUShares)
	l.v.SetDefault("runtime.pids_limit", container.DefaultPidsLimit)
	l.v.SetDefault("runtime.stop_timeout", container.DefaultStopTimeout)
	l.v.SetDefault("runtime.call_timeout", container.DefaultCallTimeout)
	l.v.SetDefault("runtime.start_timeout", instance.DefaultStartTimeout)
	l.v.SetDefault("runtime.pull_timeout", container.DefaultPullTimeout)
	l.v.SetDefault("runtime.health_check", true)
	l.v.SetDefault("ports.start", ports.DefaultStart)
	l.v.SetDefault("ports.end", ports.DefaultEnd)
	l.v.SetDefault("instances.max_per_user", instance.DefaultMaxPerUser)
	l.v.SetDefault("instances.default_ttl", instance.DefaultTTL)
	l.v.SetDefault("instances.max_extend_hours", instance.DefaultMaxExtendHours)
	l.v.SetDefault("instances.domain", instance.DefaultDomain)
	l.v.SetDefault("instances.traefik", false)
	l.v.SetDefault("sweeper.interval", sweeper.DefaultInterval)
	l.v.SetDefault("log.level", "")
	l.v.SetDefault("log.format", "text")
	l.v.SetDefault("metrics.addr", "")
	l.v.SetDefault("registry.insecure", false)
	l.v.SetDefault("registry.timeout", registry.DefaultTimeout)
}

// Ensure reads the configuration file without validating it, creating
// defaults if it doesn't exist.
func (l *Loader) Ensure() error {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the configuration file, creating defaults if it doesn't exist,
// and validates the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.Ensure(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand paths
	cfg.Database.Path = l.expandPath(cfg.Database.Path)
	cfg.Challenges.Path = l.expandPath(cfg.Challenges.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Get returns a configuration value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// Set sets a configuration value by dot-notation key.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if allowed, ok := enumKeys[key]; ok && value != "" && !contains(allowed, value) {
		return fmt.Errorf("%w: %s=%s (valid: %s)", ErrInvalidValue, key, value, strings.Join(allowed, ", "))
	}

	if key == "runtime.memory" {
		if _, err := units.RAMInBytes(value); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidMemory, value)
		}
	}

	l.v.Set(key, value)
	return l.v.WriteConfig()
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return l.v.SafeWriteConfigAs(l.path)
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ValidateKey checks if a key is a valid configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if validKeys[key] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// buildValidKeys builds the set of valid keys from Config struct using reflection.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// addKeysFromType recursively adds keys from a struct type.
func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		keys[key] = true

		// Recurse into nested structs, skipping leaf types like time.Duration
		if field.Type.Kind() == reflect.Struct {
			addKeysFromType(field.Type, key, keys)
		}
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
