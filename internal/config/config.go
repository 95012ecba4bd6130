package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Storage
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	ModelsDir     string `yaml:"models_dir" json:"models_dir"`
	CatalogFile   string `yaml:"catalog_file" json:"catalog_file"`     // Optional YAML catalog replacing the built-in one
	PermissionsDB string `yaml:"permissions_db" json:"permissions_db"` // SQLite file; ":memory:" keeps grants in RAM

	// Downloads
	MinFreeDiskMB int  `yaml:"min_free_disk_mb" json:"min_free_disk_mb"` // Headroom kept free after a download
	WatchModels   bool `yaml:"watch_models" json:"watch_models"`         // Rescan models dir on filesystem changes

	// Inference
	UseMockEngine bool    `yaml:"use_mock_engine" json:"use_mock_engine"`
	ContextSize   int     `yaml:"context_size" json:"context_size"`
	NumThreads    int     `yaml:"num_threads" json:"num_threads"` // 0 = auto-detect
	NumGPULayers  int     `yaml:"num_gpu_layers" json:"num_gpu_layers"`
	MaxTokens     int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature   float64 `yaml:"temperature" json:"temperature"`

	// Agent
	MaxToolRounds int `yaml:"max_tool_rounds" json:"max_tool_rounds"`

	// Permissions
	AllowDuplicateGrants bool `yaml:"allow_duplicate_grants" json:"allow_duplicate_grants"`

	// Logging & metrics
	LogLevel    string `yaml:"log_level" json:"log_level"`
	LogJSON     bool   `yaml:"log_json" json:"log_json"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"` // Empty disables the /metrics listener
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return ".localwork-hero"
	}
	return filepath.Join(homeDir, ".localwork-hero")
}

// LoadConfig builds a configuration from defaults and environment variables
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// Validate checks ranges and creates the data and models directories
func (c *Config) Validate() error {
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("max_tool_rounds must be at least 1, got %d", c.MaxToolRounds)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature)
	}
	if c.MinFreeDiskMB < 0 {
		return fmt.Errorf("min_free_disk_mb must not be negative")
	}

	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(c.ModelsDir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	ext := filepath.Ext(path)
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	cfg.applyDefaults()

	return cfg, nil
}

// SaveToFile saves configuration to a YAML or JSON file
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	ext := filepath.Ext(path)
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadWithPriority loads config with priority: env > file > defaults
func LoadWithPriority(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		dataDir := defaultDataDir()
		candidates := []string{
			filepath.Join(dataDir, "config.yaml"),
			filepath.Join(dataDir, "config.yml"),
			filepath.Join(dataDir, "config.json"),
		}

		for _, path := range candidates {
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err = LoadFromFile(path)
				if err != nil {
					return nil, err
				}
				break
			}
		}

		if cfg == nil {
			cfg = &Config{}
			cfg.applyDefaults()
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.ModelsDir == "" {
		c.ModelsDir = filepath.Join(c.DataDir, "models")
	}
	if c.PermissionsDB == "" {
		c.PermissionsDB = filepath.Join(c.DataDir, "permissions.db")
	}
	if c.MinFreeDiskMB == 0 {
		c.MinFreeDiskMB = 512
	}
	if c.ContextSize == 0 {
		c.ContextSize = 4096
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxToolRounds == 0 {
		c.MaxToolRounds = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// applyEnvOverrides overrides config with LOCALWORK_* environment variables
func (c *Config) applyEnvOverrides() {
	c.DataDir = getEnv("LOCALWORK_DATA_DIR", c.DataDir)
	c.ModelsDir = getEnv("LOCALWORK_MODELS_DIR", c.ModelsDir)
	c.CatalogFile = getEnv("LOCALWORK_CATALOG_FILE", c.CatalogFile)
	c.PermissionsDB = getEnv("LOCALWORK_PERMISSIONS_DB", c.PermissionsDB)
	c.MinFreeDiskMB = getEnvInt("LOCALWORK_MIN_FREE_DISK_MB", c.MinFreeDiskMB)
	c.WatchModels = getEnvBool("LOCALWORK_WATCH_MODELS", c.WatchModels)
	c.UseMockEngine = getEnvBool("LOCALWORK_MOCK_ENGINE", c.UseMockEngine)
	c.ContextSize = getEnvInt("LOCALWORK_CONTEXT_SIZE", c.ContextSize)
	c.NumThreads = getEnvInt("LOCALWORK_NUM_THREADS", c.NumThreads)
	c.NumGPULayers = getEnvInt("LOCALWORK_GPU_LAYERS", c.NumGPULayers)
	c.MaxTokens = getEnvInt("LOCALWORK_MAX_TOKENS", c.MaxTokens)
	c.Temperature = getEnvFloat("LOCALWORK_TEMPERATURE", c.Temperature)
	c.MaxToolRounds = getEnvInt("LOCALWORK_MAX_TOOL_ROUNDS", c.MaxToolRounds)
	c.AllowDuplicateGrants = getEnvBool("LOCALWORK_ALLOW_DUPLICATE_GRANTS", c.AllowDuplicateGrants)
	c.LogLevel = getEnv("LOCALWORK_LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvBool("LOCALWORK_LOG_JSON", c.LogJSON)
	c.MetricsAddr = getEnv("LOCALWORK_METRICS_ADDR", c.MetricsAddr)
}
