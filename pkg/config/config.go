package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/samber/lo"

	"github.com/openmuni/cashsync/pkg/models"
)

// SetupOptions is one remote organization entry in the config file.
type SetupOptions struct {
	Org                     string `yaml:"org"`
	APIKey                  string `yaml:"apiKey"`
	DefaultLanguage         string `yaml:"defaultLanguage"`
	EncodeNumbersInHeadings bool   `yaml:"encodeNumbersInHeadings"`
	TenantRef               string `yaml:"tenantRef"`
}

// Config holds the application configuration
type Config struct {
	DBPath string                  `yaml:"dbPath"`
	Setups map[string]SetupOptions `yaml:"setups"`
}

var (
	// Global configuration instance
	globalConfig *Config
	// Mutex to ensure thread-safe access to the global configuration
	configMutex sync.RWMutex
	// Flag to track if the configuration has been loaded
	configLoaded bool
)

// DefaultConfigPath is where the CLI looks when no --config is given.
const DefaultConfigPath = "config.yaml"

// LoadConfig loads the configuration from the specified YAML file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// InitGlobalConfig initializes the global configuration from the specified file
func InitGlobalConfig(configPath string) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = config
	configLoaded = true
	return nil
}

// GetConfig returns the global configuration instance. If the
// configuration hasn't been loaded yet, it attempts to load it from the
// default location, creating a skeleton file when none exists.
func GetConfig() (*Config, error) {
	configMutex.RLock()
	if configLoaded {
		defer configMutex.RUnlock()
		return globalConfig, nil
	}
	configMutex.RUnlock()

	if err := InitGlobalConfig(DefaultConfigPath); err != nil {
		if os.IsNotExist(err) {
			return createDefaultConfig(DefaultConfigPath)
		}
		return nil, err
	}

	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig, nil
}

func createDefaultConfig(configPath string) (*Config, error) {
	dir := filepath.Dir(configPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating config directory: %w", err)
		}
	}

	defaultConfig := &Config{
		DBPath: "cashsync.db",
		Setups: map[string]SetupOptions{
			"default": {
				Org:             "",
				APIKey:          "",
				DefaultLanguage: "de",
			},
		},
	}

	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return nil, fmt.Errorf("error writing default config: %w", err)
	}

	configMutex.Lock()
	globalConfig = defaultConfig
	configLoaded = true
	configMutex.Unlock()

	return defaultConfig, nil
}

// SetupNames returns the configured setup names in stable order.
func (c *Config) SetupNames() []string {
	names := lo.Keys(c.Setups)
	sort.Strings(names)
	return names
}

// Setup resolves one named setup into the model the engine consumes.
// Setup IDs are assigned from the sorted name order so they stay stable
// across runs as long as the config file names do.
func (c *Config) Setup(name string) (*models.APISetup, error) {
	opts, ok := c.Setups[name]
	if !ok {
		return nil, fmt.Errorf("error: setup %q not found in configuration", name)
	}
	if opts.Org == "" || opts.APIKey == "" {
		return nil, fmt.Errorf("error: setup %q is missing org or apiKey", name)
	}

	id := int64(lo.IndexOf(c.SetupNames(), name)) + 1
	return &models.APISetup{
		ID:                      id,
		Org:                     opts.Org,
		APIKey:                  opts.APIKey,
		DefaultLanguage:         opts.DefaultLanguage,
		EncodeNumbersInHeadings: opts.EncodeNumbersInHeadings,
		TenantRef:               opts.TenantRef,
	}, nil
}

// GetSetup resolves a named setup from the global configuration. An
// empty name picks the sole configured setup, failing when the choice
// is ambiguous.
func GetSetup(name string) (*models.APISetup, error) {
	config, err := GetConfig()
	if err != nil {
		return nil, err
	}

	if name == "" {
		names := config.SetupNames()
		switch len(names) {
		case 0:
			return nil, fmt.Errorf("error: no setups configured")
		case 1:
			name = names[0]
		default:
			return nil, fmt.Errorf("error: multiple setups configured, pick one of %v", names)
		}
	}

	return config.Setup(name)
}

// GetDBPath returns the configured database path, with a default.
func GetDBPath() (string, error) {
	config, err := GetConfig()
	if err != nil {
		return "", err
	}
	if config.DBPath == "" {
		return "cashsync.db", nil
	}
	return config.DBPath, nil
}
