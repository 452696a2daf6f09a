package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/changdang/companion/internal/audio"
	"github.com/changdang/companion/internal/kv"
	"github.com/changdang/companion/internal/logging"
)

// AppName names the config file, env prefix and app directories.
const AppName = "changdang"

// Playback rate bounds accepted from configuration.
const (
	MinRate = 0.5
	MaxRate = 2.0
)

// Config is the full application configuration.
type Config struct {
	Store   StoreConfig
	Player  PlayerConfig
	Content ContentConfig
	Log     LogConfig
}

// StoreConfig selects the key-value backend for the content cache.
type StoreConfig struct {
	Backend          string
	Path             string
	KeyPrefix        string
	CompressionLevel int
}

// PlayerConfig configures the audio device and controller.
type PlayerConfig struct {
	Device             string
	DefaultRate        float64
	SampleRate         int
	Channels           int
	TimeUpdateInterval time.Duration
	CacheBytes         int64
}

// ContentConfig configures the dataset and display language.
type ContentConfig struct {
	DatasetDir string
	Language   string
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string
	DebugFile bool
}

// Env holds debug toggles read from the environment.
type Env struct {
	Debug   bool   `env:"CHANGDANG_DEBUG"`
	Trace   bool   `env:"CHANGDANG_TRACE"`
	LogFile string `env:"CHANGDANG_LOG_FILE"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// Default returns the built-in configuration.
func Default() Config {
	store := kv.DefaultConfig()
	device := audio.DefaultConfig()
	return Config{
		Store: StoreConfig{
			Backend:          store.Backend,
			KeyPrefix:        AppName,
			CompressionLevel: store.CompressionLevel,
		},
		Player: PlayerConfig{
			Device:             device.Device,
			DefaultRate:        1.0,
			SampleRate:         device.SampleRate,
			Channels:           device.Channels,
			TimeUpdateInterval: device.TimeUpdateInterval,
			CacheBytes:         device.CacheBytes,
		},
		Content: ContentConfig{
			Language: "zh",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from v on top of Default, expands ~ in paths and
// validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v.IsSet("store.backend") {
		cfg.Store.Backend = v.GetString("store.backend")
	}
	if v.IsSet("store.path") {
		cfg.Store.Path = v.GetString("store.path")
	}
	if v.IsSet("store.key_prefix") {
		cfg.Store.KeyPrefix = v.GetString("store.key_prefix")
	}
	if v.IsSet("store.compression_level") {
		cfg.Store.CompressionLevel = v.GetInt("store.compression_level")
	}

	if v.IsSet("player.device") {
		cfg.Player.Device = v.GetString("player.device")
	}
	if v.IsSet("player.default_rate") {
		cfg.Player.DefaultRate = v.GetFloat64("player.default_rate")
	}
	if v.IsSet("player.sample_rate") {
		cfg.Player.SampleRate = v.GetInt("player.sample_rate")
	}
	if v.IsSet("player.channels") {
		cfg.Player.Channels = v.GetInt("player.channels")
	}
	if v.IsSet("player.time_update_interval") {
		cfg.Player.TimeUpdateInterval = v.GetDuration("player.time_update_interval")
	}
	if v.IsSet("player.cache_size") {
		n, err := humanize.ParseBytes(v.GetString("player.cache_size"))
		if err != nil {
			return cfg, fmt.Errorf("invalid player.cache_size: %w", err)
		}
		if n > math.MaxInt64 {
			return cfg, fmt.Errorf("player.cache_size too large: %s", v.GetString("player.cache_size"))
		}
		cfg.Player.CacheBytes = int64(n)
	}

	if v.IsSet("content.dataset_dir") {
		cfg.Content.DatasetDir = v.GetString("content.dataset_dir")
	}
	if v.IsSet("content.language") {
		cfg.Content.Language = v.GetString("content.language")
	}

	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.debug_file") {
		cfg.Log.DebugFile = v.GetBool("log.debug_file")
	}

	var err error
	if cfg.Store.Path, err = expand(cfg.Store.Path); err != nil {
		return cfg, err
	}
	if cfg.Content.DatasetDir, err = expand(cfg.Content.DatasetDir); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case kv.BackendMemory, kv.BackendFile, kv.BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.CompressionLevel < 0 || c.Store.CompressionLevel > 22 {
		return fmt.Errorf("compression level must be between 0 and 22, got %d", c.Store.CompressionLevel)
	}
	if c.Player.DefaultRate < MinRate || c.Player.DefaultRate > MaxRate {
		return fmt.Errorf("default rate must be between %.1f and %.1f, got %g", MinRate, MaxRate, c.Player.DefaultRate)
	}
	if err := c.AudioConfig().Validate(); err != nil {
		return err
	}
	if _, err := language.Parse(c.Content.Language); err != nil {
		return fmt.Errorf("invalid content language %q: %w", c.Content.Language, err)
	}
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// KVConfig returns the kv settings, defaulting the path into dataDir.
func (c Config) KVConfig(dataDir string) kv.Config {
	cfg := kv.DefaultConfig()
	cfg.Backend = c.Store.Backend
	cfg.CompressionLevel = c.Store.CompressionLevel
	cfg.Path = c.Store.Path
	if cfg.Path == "" {
		switch cfg.Backend {
		case kv.BackendFile:
			cfg.Path = filepath.Join(dataDir, "store")
		case kv.BackendSQLite:
			cfg.Path = filepath.Join(dataDir, "store.db")
		}
	}
	return cfg
}

// AudioConfig returns the device settings.
func (c Config) AudioConfig() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.Device = c.Player.Device
	cfg.SampleRate = c.Player.SampleRate
	cfg.Channels = c.Player.Channels
	cfg.TimeUpdateInterval = c.Player.TimeUpdateInterval
	cfg.CacheBytes = c.Player.CacheBytes
	return cfg
}

// LanguageTag returns the parsed display language, falling back to Chinese.
func (c Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Content.Language)
	if err != nil {
		return language.Chinese
	}
	return tag
}

// ConfigDirs returns the directories searched for changdang.yml, most
// specific first.
func ConfigDirs() ([]string, error) {
	dirs, err := gap.NewScope(gap.User, AppName).ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not load find configuration directory: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("CHANGDANG_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// DataDir returns the user data directory, creating it if needed.
func DataDir() (string, error) {
	path, err := gap.NewScope(gap.User, AppName).DataPath("")
	if err != nil {
		return "", fmt.Errorf("could not find data directory: %w", err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", fmt.Errorf("could not create data directory: %w", err)
	}
	return path, nil
}

// DefaultConfigFile returns where a new config file is written.
func DefaultConfigFile() (string, error) {
	dirs, err := ConfigDirs()
	if err != nil {
		return "", err
	}
	if len(dirs) == 0 {
		return "", errors.New("no configuration directory available")
	}
	return filepath.Join(dirs[0], AppName+".yml"), nil
}

// Prepare points v at file, or at the default search path when file is
// empty, and enables CHANGDANG_* environment overrides. A missing config
// file is not an error.
func Prepare(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		dirs, err := ConfigDirs()
		if err != nil {
			return err
		}
		for _, d := range dirs {
			v.AddConfigPath(d)
		}
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error parsing config: %w", err)
		}
	}
	return nil
}

// Watch reloads the config whenever the file changes and passes the result
// to onChange. Invalid edits are reported through onError and otherwise
// ignored.
func Watch(v *viper.Viper, onChange func(Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return p, nil
}
