// Package config loads fdsh configuration from JSONC files and flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/fdsys/pkg/fdsys"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Capacity      int    `json:"capacity"`
	Reserved      int    `json:"reserved"`
	MaxNameLength int    `json:"max_name_length"`
	SeedDir       string `json:"seed_dir,omitempty"`
	LogLevel      string `json:"log_level"`
	HistoryFile   string `json:"history_file,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd   string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	SeedDirAbs     string `json:"-"` // Absolute seed directory, empty if none
	HistoryFileAbs string `json:"-"` // Absolute shell history path, empty if none

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      fdsys.DefaultCapacity,
		Reserved:      fdsys.DefaultReserved,
		MaxNameLength: fdsys.DefaultMaxNameLength,
		LogLevel:      "warn",
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".fdsh.json"

// fileConfig is one config file as written. Pointers distinguish an
// explicit zero from an absent key.
type fileConfig struct {
	Capacity      *int    `json:"capacity"`
	Reserved      *int    `json:"reserved"`
	MaxNameLength *int    `json:"max_name_length"`
	SeedDir       *string `json:"seed_dir"`
	LogLevel      *string `json:"log_level"`
	HistoryFile   *string `json:"history_file"`
}

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/fdsh/config.json if set, otherwise ~/.config/fdsh/config.json.
// Returns empty string if home directory cannot be determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "fdsh", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "fdsh", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride  string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath       string            // -c/--config flag value
	CapacityOverride int               // --capacity flag value; 0 means no override
	SeedDirOverride  string            // --seed flag value; empty means no override
	Debug            bool              // --debug forces log_level=debug
	Env              map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/fdsh/config.json or $XDG_CONFIG_HOME/fdsh/config.json)
// 3. Project config file at default location (.fdsh.json, if exists)
// 4. Explicit config file via configPath (if non-empty, replaces 3)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	if globalPath := getGlobalConfigPath(input.Env); globalPath != "" {
		globalCfg, loaded, err := loadConfigFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
			cfg = mergeConfig(cfg, globalCfg)
		}
	}

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if input.CapacityOverride != 0 {
		cfg.Capacity = input.CapacityOverride
	}

	if input.SeedDirOverride != "" {
		cfg.SeedDir = input.SeedDirOverride
	}

	if input.Debug {
		cfg.LogLevel = "debug"
	}

	err = validateConfig(cfg)
	if err != nil {
		source := "configuration"
		if cfg.Sources.Project != "" {
			source = cfg.Sources.Project
		} else if cfg.Sources.Global != "" {
			source = cfg.Sources.Global
		}

		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, source, err)
	}

	cfg.EffectiveCwd = workDir
	cfg.SeedDirAbs = absPath(workDir, cfg.SeedDir)
	cfg.HistoryFileAbs = absPath(workDir, cfg.HistoryFile)

	return cfg, nil
}

// KernelOptions returns the fdsys options this config describes.
func (c Config) KernelOptions(logger *slog.Logger) fdsys.Options {
	return fdsys.Options{
		Capacity:      c.Capacity,
		Reserved:      c.Reserved,
		MaxNameLength: c.MaxNameLength,
		Logger:        logger,
	}
}

// Level returns the slog level for LogLevel. Unknown values map to warn.
func (c Config) Level() slog.Level {
	level, ok := levels[c.LogLevel]
	if !ok {
		return slog.LevelWarn
	}

	return level
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// loadProjectConfig loads the project config file (.fdsh.json) or an explicit config file.
// Returns the config, the path if loaded, and any error.
func loadProjectConfig(workDir, configPath string) (fileConfig, string, error) {
	if configPath == "" {
		cfgFile := filepath.Join(workDir, ConfigFileName)

		fileCfg, loaded, err := loadConfigFile(cfgFile, false)
		if err != nil || !loaded {
			return fileConfig{}, "", err
		}

		return fileCfg, cfgFile, nil
	}

	cfgFile := configPath
	if !filepath.IsAbs(cfgFile) {
		cfgFile = filepath.Join(workDir, cfgFile)
	}

	// Check existence first to provide a clear "not found" error
	_, statErr := os.Stat(cfgFile)
	if statErr != nil {
		return fileConfig{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	fileCfg, _, err := loadConfigFile(cfgFile, true)
	if err != nil {
		return fileConfig{}, "", err
	}

	return fileCfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files
// return a zero config and loaded=false.
func loadConfigFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if mustExist {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return fileConfig{}, false, nil
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	err = validateFile(cfg)
	if err != nil {
		return fileConfig{}, err
	}

	return cfg, nil
}

func mergeConfig(base Config, overlay fileConfig) Config {
	if overlay.Capacity != nil {
		base.Capacity = *overlay.Capacity
	}

	if overlay.Reserved != nil {
		base.Reserved = *overlay.Reserved
	}

	if overlay.MaxNameLength != nil {
		base.MaxNameLength = *overlay.MaxNameLength
	}

	if overlay.SeedDir != nil {
		base.SeedDir = *overlay.SeedDir
	}

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	if overlay.HistoryFile != nil {
		base.HistoryFile = *overlay.HistoryFile
	}

	return base
}

// validateFile rejects values that are wrong no matter what overrides them.
func validateFile(cfg fileConfig) error {
	if cfg.LogLevel != nil {
		if _, ok := levels[*cfg.LogLevel]; !ok {
			return fmt.Errorf("log_level %q must be one of debug, info, warn, error", *cfg.LogLevel)
		}
	}

	if cfg.SeedDir != nil && strings.TrimSpace(*cfg.SeedDir) == "" {
		return errors.New("seed_dir cannot be empty")
	}

	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Capacity < 1 {
		return fmt.Errorf("capacity must be >= 1, got %d", cfg.Capacity)
	}

	if cfg.Reserved < 0 {
		return fmt.Errorf("reserved must be >= 0, got %d", cfg.Reserved)
	}

	if cfg.MaxNameLength < 1 {
		return fmt.Errorf("max_name_length must be >= 1, got %d", cfg.MaxNameLength)
	}

	if _, ok := levels[cfg.LogLevel]; !ok {
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", cfg.LogLevel)
	}

	return nil
}

func absPath(workDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}
