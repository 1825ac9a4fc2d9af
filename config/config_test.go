package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all default values
// when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values when no config provided")
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	cfg := NewConfig(override)

	expCfg := &Config{
		MountOptions: MountOptions{
			FsName:   "test_fs",
			Name:     "test_name",
			ReadOnly: true,
		},
		LogLvl:          util.TraceLevel,
		Strategy:        GlobalLock,
		NumThreads:      *override.NumThreads,
		InodeTableSize:  *override.InodeTableSize,
		MaxDirEntries:   *override.MaxDirEntries,
		MaxFileName:     *override.MaxFileName,
		QueueCapacity:   *override.QueueCapacity,
		MaxCommands:     *override.MaxCommands,
		MaxInputSize:    *override.MaxInputSize,
		MaxMoveRetries:  *override.MaxMoveRetries,
		ClientSocketDir: "/run/tfs",
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", 1, util.ErrorLevel},
		{"verbose_2_warn", 2, util.WarnLevel},
		{"verbose_3_info", 3, util.InfoLevel},
		{"verbose_4_debug", 4, util.DebugLevel},
		{"verbose_5_trace", 5, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(&ConfigOverride{LogLvl: &tt.verboseValue})

			assert.Equal(t, tt.expectedLevel, cfg.LogLvl,
				"CLI verbose %d should map to util.LogLevel %v", tt.verboseValue, tt.expectedLevel)
		})
	}
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		NumThreads:    util.Pointer(4),
		QueueCapacity: util.Pointer(DefaultQueueCapacity + 1),
	}
	cfg := NewConfig(override)

	expCfg := createDefaultCfg()
	expCfg.NumThreads = 4
	expCfg.QueueCapacity = DefaultQueueCapacity + 1

	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"nosync_single_thread", func(c *Config) { c.Strategy = NoSync }, ""},
		{"nosync_many_threads", func(c *Config) { c.Strategy = NoSync; c.NumThreads = 2 }, "requires exactly one thread"},
		{"zero_threads", func(c *Config) { c.NumThreads = 0 }, "invalid number of threads"},
		{"unknown_strategy", func(c *Config) { c.Strategy = "spin" }, "unknown synchronization strategy"},
		{"no_root_slot", func(c *Config) { c.InodeTableSize = 0 }, "room for the root"},
		{"zero_queue", func(c *Config) { c.QueueCapacity = 0 }, "invalid queue capacity"},
		{"negative_retries", func(c *Config) { c.MaxMoveRetries = -1 }, "invalid max move retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Strategy{
		"nosync":   NoSync,
		"mutex":    GlobalLock,
		"global":   GlobalLock,
		"rwlock":   PerNodeLock,
		"PerNode":  PerNodeLock,
		" rwlock ": PerNodeLock,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("optimistic")
	assert.Error(t, err)
}

func TestLoadConfigOverrideFile_Valid(t *testing.T) {
	t.Parallel()

	type tc struct {
		ext   string
		build func() (*ConfigOverride, []byte)
	}

	cases := []tc{
		{
			ext: ".yaml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".yml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".json",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := json.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
	}

	for _, c := range cases {
		t.Run("valid"+c.ext, func(t *testing.T) {
			t.Parallel()
			override, data := c.build()
			path := filepath.Join(t.TempDir(), "override"+c.ext)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			loaded, err := LoadConfigOverrideFile(path)

			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, *override, *loaded)
		})
	}
}

func TestLoadConfigOverrideFile_StrategyAlias(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: global\nthreads: 3\n"), 0o600))

	cfg, err := NewConfigFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, GlobalLock, cfg.Strategy)
	assert.Equal(t, 3, cfg.NumThreads)
}

func TestLoadConfigOverrideFile_NonExistentFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does_not_exist.yaml")

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "expected not exist error, got %v", err)
}

func TestLoadConfigOverrideFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("threads: 1"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config file extension")
}

func TestNewConfigFromFile_FileError(t *testing.T) {
	t.Parallel()

	_, err := NewConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func createDefaultCfg() *Config {
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

// createOverride makes a ConfigOverride with all non-default values
func createOverride() *ConfigOverride {
	return &ConfigOverride{
		LogLvl:          util.Pointer(TraceVerbose),
		Strategy:        util.Pointer(GlobalLock),
		NumThreads:      util.Pointer(DefaultNumThreads + 3),
		InodeTableSize:  util.Pointer(DefaultInodeTableSize + 1),
		MaxDirEntries:   util.Pointer(DefaultMaxDirEntries + 1),
		MaxFileName:     util.Pointer(DefaultMaxFileName + 1),
		QueueCapacity:   util.Pointer(DefaultQueueCapacity + 1),
		MaxCommands:     util.Pointer(DefaultMaxCommands + 1),
		MaxInputSize:    util.Pointer(DefaultMaxInputSize + 1),
		MaxMoveRetries:  util.Pointer(DefaultMaxMoveRetries + 5),
		ClientSocketDir: util.Pointer("/run/tfs"),
		FsName:          util.Pointer("test_fs"),
		Name:            util.Pointer("test_name"),
		ReadOnly:        util.Pointer(true),
	}
}
