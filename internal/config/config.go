package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved configuration of the control program.
type Config struct {
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`

	SupportedAudioExtensions []string `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`
}

// DeviceConfig carries the encoder chip settings.
type DeviceConfig struct {
	ClockMultiplier uint16 `mapstructure:"clock_multiplier" yaml:"clock_multiplier"`
	LineInput       bool   `mapstructure:"line_input" yaml:"line_input"`

	// Gain is the fixed input gain; 0 selects automatic gain control.
	Gain            uint16 `mapstructure:"gain" yaml:"gain"`
	AutoGainCeiling uint16 `mapstructure:"auto_gain_ceiling" yaml:"auto_gain_ceiling"`

	Plugin string `mapstructure:"plugin" yaml:"plugin"`

	// ReadyTimeoutMS bounds each wait for the hardware-ready signal.
	ReadyTimeoutMS int `mapstructure:"ready_timeout_ms" yaml:"ready_timeout_ms"`
}

// RecordingConfig carries the sink-side settings.
type RecordingConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Format    string `mapstructure:"format" yaml:"format"`

	// StopChar is the byte on the command channel that requests a stop.
	StopChar string `mapstructure:"stop_char" yaml:"stop_char"`
}

// ServerConfig carries the remote-control server settings.
type ServerConfig struct {
	Port int  `mapstructure:"port" yaml:"port"`
	MDNS bool `mapstructure:"mdns" yaml:"mdns"`
}

var defaultConfig = Config{
	Device: DeviceConfig{
		ClockMultiplier: 0xC000,
		LineInput:       true,
		Gain:            1024,
		AutoGainCeiling: 0,
		Plugin:          "venc44k2.plg",
		ReadyTimeoutMS:  100,
	},
	Recording: RecordingConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "ChipCapture"),
		Format:    "ogg",
		StopChar:  "s",
	},
	Server: ServerConfig{
		Port: 8080,
		MDNS: true,
	},
	SupportedAudioExtensions: []string{"ogg", "wav", "mp3"},
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	cfg := defaultConfig
	cfg.SupportedAudioExtensions = append([]string(nil), defaultConfig.SupportedAudioExtensions...)
	return &cfg
}

// Load reads the YAML config file, layers it over the defaults, applies
// CHIPCAPTURE_* environment overrides and validates the result. An empty
// configFile returns the defaults.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("CHIPCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	cfg.Recording.Directory = expandPath(cfg.Recording.Directory)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the resolved configuration.
func Validate(cfg *Config) error {
	if cfg.Device.ClockMultiplier == 0 {
		return fmt.Errorf("device.clock_multiplier must be non-zero")
	}
	if cfg.Device.Plugin == "" {
		return fmt.Errorf("device.plugin is required")
	}
	if cfg.Device.ReadyTimeoutMS <= 0 {
		return fmt.Errorf("device.ready_timeout_ms must be > 0, got: %d", cfg.Device.ReadyTimeoutMS)
	}
	if cfg.Device.Gain != 0 && cfg.Device.AutoGainCeiling != 0 {
		return fmt.Errorf("device.gain and device.auto_gain_ceiling are mutually exclusive")
	}

	if cfg.Recording.Directory == "" {
		return fmt.Errorf("recording.directory is required")
	}
	if len(cfg.Recording.StopChar) != 1 {
		return fmt.Errorf("recording.stop_char must be a single character, got: %q", cfg.Recording.StopChar)
	}

	if len(cfg.SupportedAudioExtensions) == 0 {
		return fmt.Errorf("supported_audio_extensions cannot be empty")
	}
	found := false
	for _, ext := range cfg.SupportedAudioExtensions {
		if strings.EqualFold(ext, cfg.Recording.Format) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("recording.format %q is not among supported_audio_extensions %v",
			cfg.Recording.Format, cfg.SupportedAudioExtensions)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got: %d", cfg.Server.Port)
	}

	return nil
}

// StopByte returns the configured stop character as a byte.
func (c *Config) StopByte() byte {
	return c.Recording.StopChar[0]
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
