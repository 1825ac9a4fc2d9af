package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/tecnicofs/internal/util"
	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration values for TecnicoFS.
// It is built once at startup and threaded through every component; nothing
// reads it from global state.
type Config struct {
	MountOptions
	LogLvl util.LogLevel // Internal log level (Default info)

	Strategy   Strategy // Locking discipline (Default rwlock)
	NumThreads int      // Worker goroutines applying commands (Default 1)

	InodeTableSize int // Total inode slots including the root (Default 50)
	MaxDirEntries  int // Entry slots per directory (Default 20)
	MaxFileName    int // Longest accepted path component in bytes (Default 100)

	QueueCapacity int // Command ring slots between producer and consumers (Default 10)
	MaxCommands   int // Commands the batch front end may load (Default 150000)
	MaxInputSize  int // Longest command line or request datagram in bytes (Default 100)

	// MaxMoveRetries bounds how often a contended move restarts; 0 is unbounded
	MaxMoveRetries int
	// ClientSocketDir is where clients bind their ephemeral endpoints (Default os.TempDir())
	ClientSocketDir string
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is a CLI style verbosity between 1 (error) and 5 (trace)
	LogLvl          *int      `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	Strategy        *Strategy `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	NumThreads      *int      `yaml:"threads,omitempty" json:"threads,omitempty"`
	InodeTableSize  *int      `yaml:"inode_table_size,omitempty" json:"inode_table_size,omitempty"`
	MaxDirEntries   *int      `yaml:"max_dir_entries,omitempty" json:"max_dir_entries,omitempty"`
	MaxFileName     *int      `yaml:"max_file_name,omitempty" json:"max_file_name,omitempty"`
	QueueCapacity   *int      `yaml:"queue_capacity,omitempty" json:"queue_capacity,omitempty"`
	MaxCommands     *int      `yaml:"max_commands,omitempty" json:"max_commands,omitempty"`
	MaxInputSize    *int      `yaml:"max_input_size,omitempty" json:"max_input_size,omitempty"`
	MaxMoveRetries  *int      `yaml:"max_move_retries,omitempty" json:"max_move_retries,omitempty"`
	ClientSocketDir *string   `yaml:"client_socket_dir,omitempty" json:"client_socket_dir,omitempty"`
	FsName          *string   `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name            *string   `yaml:"name,omitempty" json:"name,omitempty"`
	ReadOnly        *bool     `yaml:"read_only,omitempty" json:"read_only,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:          DefaultLogLvl,
		Strategy:        DefaultStrategy,
		NumThreads:      DefaultNumThreads,
		InodeTableSize:  DefaultInodeTableSize,
		MaxDirEntries:   DefaultMaxDirEntries,
		MaxFileName:     DefaultMaxFileName,
		QueueCapacity:   DefaultQueueCapacity,
		MaxCommands:     DefaultMaxCommands,
		MaxInputSize:    DefaultMaxInputSize,
		MaxMoveRetries:  DefaultMaxMoveRetries,
		ClientSocketDir: os.TempDir(),
	}
}

// NewConfig returns the defaults with override applied; a nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbose(*override.LogLvl)
	}
	if override.Strategy != nil {
		c.Strategy = *override.Strategy
	}
	if override.NumThreads != nil {
		c.NumThreads = *override.NumThreads
	}
	if override.InodeTableSize != nil {
		c.InodeTableSize = *override.InodeTableSize
	}
	if override.MaxDirEntries != nil {
		c.MaxDirEntries = *override.MaxDirEntries
	}
	if override.MaxFileName != nil {
		c.MaxFileName = *override.MaxFileName
	}
	if override.QueueCapacity != nil {
		c.QueueCapacity = *override.QueueCapacity
	}
	if override.MaxCommands != nil {
		c.MaxCommands = *override.MaxCommands
	}
	if override.MaxInputSize != nil {
		c.MaxInputSize = *override.MaxInputSize
	}
	if override.MaxMoveRetries != nil {
		c.MaxMoveRetries = *override.MaxMoveRetries
	}
	if override.ClientSocketDir != nil {
		c.ClientSocketDir = *override.ClientSocketDir
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.ReadOnly != nil {
		c.ReadOnly = *override.ReadOnly
	}
}

// Validate reports every inconsistent field at once
func (c *Config) Validate() error {
	var errs []error
	if c.NumThreads < 1 {
		errs = append(errs, fmt.Errorf("invalid number of threads: %d", c.NumThreads))
	}
	switch c.Strategy {
	case NoSync:
		if c.NumThreads != 1 {
			errs = append(errs, fmt.Errorf("strategy %s requires exactly one thread, got %d", c.Strategy, c.NumThreads))
		}
	case GlobalLock, PerNodeLock:
	default:
		errs = append(errs, fmt.Errorf("unknown synchronization strategy: %q", c.Strategy))
	}
	if c.InodeTableSize < 1 {
		errs = append(errs, fmt.Errorf("inode table needs room for the root, got %d", c.InodeTableSize))
	}
	if c.MaxDirEntries < 1 {
		errs = append(errs, fmt.Errorf("invalid max dir entries: %d", c.MaxDirEntries))
	}
	if c.MaxFileName < 1 {
		errs = append(errs, fmt.Errorf("invalid max file name: %d", c.MaxFileName))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("invalid queue capacity: %d", c.QueueCapacity))
	}
	if c.MaxInputSize < 1 {
		errs = append(errs, fmt.Errorf("invalid max input size: %d", c.MaxInputSize))
	}
	if c.MaxMoveRetries < 0 {
		errs = append(errs, fmt.Errorf("invalid max move retries: %d", c.MaxMoveRetries))
	}
	return errors.Join(errs...)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
