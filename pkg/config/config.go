/*
Package config manages TOML config for the PowerAuger engine.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/utils"
)

// Config holds the entire config structure
type Config struct {
	Store      StoreConfig      `toml:"store"`
	Pool       PoolConfig       `toml:"pool"`
	Backend    BackendConfig    `toml:"backend"`
	Completion CompletionConfig `toml:"completion"`
	Server     ServerConfig     `toml:"server"`
	CLI        CliConfig        `toml:"cli"`
}

// StoreConfig holds frecency store options.
type StoreConfig struct {
	DataDir             string  `toml:"data_dir"`
	Capacity            int     `toml:"capacity"`
	ScoreCeiling        float64 `toml:"score_ceiling"`
	ScoreFloor          float64 `toml:"score_floor"`
	DecayFactor         float64 `toml:"decay_factor"`
	MaintenanceInterval int     `toml:"maintenance_interval_sec"`
}

// PoolConfig holds interpreter worker pool options.
type PoolConfig struct {
	Size int `toml:"size"`
}

// BackendConfig holds AI backend options.
type BackendConfig struct {
	URL              string  `toml:"url"`
	Model            string  `toml:"model"`
	TimeoutMs        int     `toml:"timeout_ms"`
	FailureThreshold int     `toml:"failure_threshold"`
	CooldownSec      int     `toml:"cooldown_sec"`
	RequestsPerSec   float64 `toml:"requests_per_sec"`
	Enabled          bool    `toml:"enabled"`
}

// CompletionConfig holds orchestration options.
type CompletionConfig struct {
	CacheTTLSec int `toml:"cache_ttl_sec"`
	MaxResults  int `toml:"max_results"`
}

// ServerConfig has IPC server related options.
type ServerConfig struct {
	MaxLimit  int `toml:"max_limit"`
	MinPrefix int `toml:"min_prefix"`
	MaxPrefix int `toml:"max_prefix"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit  int `toml:"default_limit"`
	DefaultMinLen int `toml:"default_min_len"`
	DefaultMaxLen int `toml:"default_max_len"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "powerauger")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	// Not conventional, fallback from ~/.config if not writable
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "powerauger")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/powerauger/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	var config *Config
	var err error

	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err = LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err = InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DataDir:             "",
			Capacity:            2000,
			ScoreCeiling:        10000,
			ScoreFloor:          0.1,
			DecayFactor:         0.75,
			MaintenanceInterval: 300,
		},
		Pool: PoolConfig{
			Size: 3,
		},
		Backend: BackendConfig{
			URL:              "http://127.0.0.1:11434",
			Model:            "qwen2.5-coder:1.5b",
			TimeoutMs:        4000,
			FailureThreshold: 3,
			CooldownSec:      60,
			RequestsPerSec:   2,
			Enabled:          true,
		},
		Completion: CompletionConfig{
			CacheTTLSec: 30,
			MaxResults:  8,
		},
		Server: ServerConfig{
			MaxLimit:  64,
			MinPrefix: 1,
			MaxPrefix: 400,
		},
		CLI: CliConfig{
			DefaultLimit:  10,
			DefaultMinLen: 1,
			DefaultMaxLen: 200,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. Values absent from the file keep their
// defaults, so partially written configs still load.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// BackendTimeout returns the hard per-call timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMs) * time.Millisecond
}

// CacheTTL returns the completion cache time-to-live as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Completion.CacheTTLSec) * time.Second
}

// MaintenanceInterval returns the store maintenance period as a duration.
func (c *Config) MaintenanceInterval() time.Duration {
	return time.Duration(c.Store.MaintenanceInterval) * time.Second
}
