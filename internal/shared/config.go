package shared

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library   LibraryConfig   `toml:"library"`
	Playlists PlaylistsConfig `toml:"playlists"`
	Device    DeviceConfig    `toml:"device"`
	Transcode TranscodeConfig `toml:"transcode"`
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
	Watch     WatchConfig     `toml:"watch"`
}

// LibraryConfig describes the source-side music library.
type LibraryConfig struct {
	Root      string   `toml:"root"`      // Absolute library root; desired paths are made relative to it
	Playlists []string `toml:"playlists"` // Playlists synced when none are given on the command line
}

// PlaylistsConfig selects how playlist names resolve to source files.
type PlaylistsConfig struct {
	Source     string `toml:"source"`      // "m3u" or "swinsian"
	M3UDir     string `toml:"m3u_dir"`     // Directory holding <name>.m3u files
	SwinsianDB string `toml:"swinsian_db"` // Path to the Swinsian library database
}

// DeviceConfig identifies the target device and where content lives on it.
type DeviceConfig struct {
	Name       string   `toml:"name"`        // Friendly name reported by the device
	Mounts     []string `toml:"mounts"`      // Glob patterns of mounted device directories
	RootFolder string   `toml:"root_folder"` // Folder at the storage root that holds synced music
}

// TranscodeConfig contains encoder and cache settings.
type TranscodeConfig struct {
	FFmpeg   string `toml:"ffmpeg"`
	CacheDir string `toml:"cache_dir"`
	Workers  int    `toml:"workers"` // 0 means runtime.NumCPU()
}

// DatabaseConfig contains database connection settings for run history.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// WatchConfig controls `sync --watch`.
type WatchConfig struct {
	Debounce time.Duration `toml:"debounce"` // Quiet period after the last playlist change before a sync starts
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.expandPaths()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.expandPaths()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) expandPaths() {
	c.Library.Root = ExpandHome(c.Library.Root)
	c.Playlists.M3UDir = ExpandHome(c.Playlists.M3UDir)
	c.Playlists.SwinsianDB = ExpandHome(c.Playlists.SwinsianDB)
	c.Transcode.CacheDir = ExpandHome(c.Transcode.CacheDir)
}

// Validate checks the fields a sync run cannot do without.
func (c *Config) Validate() error {
	if c.Library.Root == "" {
		return fmt.Errorf("%w: library.root is required", ErrInvalidConfig)
	}
	if c.Device.Name == "" {
		return fmt.Errorf("%w: device.name is required", ErrInvalidConfig)
	}
	if c.Device.RootFolder == "" {
		return fmt.Errorf("%w: device.root_folder is required", ErrInvalidConfig)
	}
	if c.Transcode.CacheDir == "" {
		return fmt.Errorf("%w: transcode.cache_dir is required", ErrInvalidConfig)
	}
	switch c.Playlists.Source {
	case "m3u", "swinsian":
	default:
		return fmt.Errorf("%w: playlists.source must be 'm3u' or 'swinsian', got '%s'", ErrInvalidConfig, c.Playlists.Source)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must not be negative", ErrInvalidConfig)
	}
	if c.Transcode.Workers < 0 {
		return fmt.Errorf("%w: transcode.workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

// WorkerCount resolves the configured transcode parallelism.
func (c *Config) WorkerCount() int {
	if c.Transcode.Workers > 0 {
		return c.Transcode.Workers
	}
	return runtime.NumCPU()
}
