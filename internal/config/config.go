package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the appliance settings shared by the siren binaries.
type Config struct {
	// ListenAddress is the address the HTTP API listens on.
	ListenAddress string `yaml:"listen_addr"`
	// TLSCertFile is an optional path to a PEM certificate for HTTPS.
	TLSCertFile string `yaml:"tls_cert_file"`
	// TLSKeyFile is an optional path to a PEM private key for HTTPS.
	TLSKeyFile string `yaml:"tls_key_file"`
	// AudioDir is the directory holding siren assets (flood.wav, ...).
	AudioDir string `yaml:"audio_dir"`
	// UploadsDir is the directory for uploaded and converted audio.
	UploadsDir string `yaml:"uploads_dir"`
	// RegistryStateFile is the path to the YAML file persisting the
	// Custom mode's asset path across restarts.
	RegistryStateFile string `yaml:"registry_state_file"`
	// PlayerCommand is the external player invocation; the asset path is
	// appended as the last argument.
	PlayerCommand []string `yaml:"player_command"`
	// FFmpegPath is the ffmpeg binary used to convert uploads to WAV.
	FFmpegPath string `yaml:"ffmpeg_path"`
	// StartStopPin is the BCM pin of the start/stop button.
	StartStopPin int `yaml:"start_stop_pin"`
	// CycleModePin is the BCM pin of the mode-cycle button.
	CycleModePin int `yaml:"cycle_mode_pin"`
	// StatusLEDPin is the BCM pin of the status LED, negative to disable.
	StatusLEDPin int `yaml:"status_led_pin"`
	// DebounceHold is how long a button level must stay stable before a
	// press is recognized.
	DebounceHold time.Duration `yaml:"debounce_hold"`
	// CommandQueueSize is the capacity of the command channel.
	CommandQueueSize int `yaml:"command_queue_size"`
	// SubmitTimeout bounds how long a web submission may wait for a slot
	// on a saturated command channel before failing with Busy.
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	// StopGracePeriod is how long the playback manager waits after a
	// graceful stop signal before force-killing the player.
	StopGracePeriod time.Duration `yaml:"stop_grace_period"`
	// LogLevel is the minimum level for log output (debug, info, ...).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for appliance settings.
	DefaultConfigFilename = "siren-settings.yaml"

	// DefaultListenAddress is the default HTTP API listen address.
	DefaultListenAddress = ":5000"

	// DefaultAudioDir is the default directory for siren assets.
	DefaultAudioDir = "sirens"

	// DefaultRegistryStateFilename is the default registry state file.
	DefaultRegistryStateFilename = "siren-registry.yaml"

	// DefaultDebounceHold is the default button stability window.
	DefaultDebounceHold = 50 * time.Millisecond

	// DefaultCommandQueueSize is the default command channel capacity.
	DefaultCommandQueueSize = 16

	// DefaultSubmitTimeout is the default wait bound for web submissions.
	DefaultSubmitTimeout = 2 * time.Second

	// DefaultStopGracePeriod is the default wait before a forced kill.
	DefaultStopGracePeriod = 2 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultStartStopPin is the default start/stop button pin (BCM).
	DefaultStartStopPin = 17
	// DefaultCycleModePin is the default mode-cycle button pin (BCM).
	DefaultCycleModePin = 22
	// DefaultStatusLEDPin is the default status LED pin (BCM).
	DefaultStatusLEDPin = 27
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errTLSFilesIncomplete is returned when only one of cert/key is set.
	errTLSFilesIncomplete = errors.New("both TLS certificate and key must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults for
// everything left unset.
//
//nolint:cyclop // A flat list of field defaults is clearer than helper soup.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errTLSFilesIncomplete
	}

	if cfg.AudioDir == "" {
		cfg.AudioDir = DefaultAudioDir
	}

	if cfg.UploadsDir == "" {
		cfg.UploadsDir = filepath.Join(cfg.AudioDir, "uploads")
	}

	if cfg.RegistryStateFile == "" {
		cfg.RegistryStateFile = DefaultRegistryStateFilename
	}

	if len(cfg.PlayerCommand) == 0 {
		cfg.PlayerCommand = []string{"aplay", "-q"}
	}

	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	if cfg.StartStopPin == 0 {
		cfg.StartStopPin = DefaultStartStopPin
	}

	if cfg.CycleModePin == 0 {
		cfg.CycleModePin = DefaultCycleModePin
	}

	if cfg.StatusLEDPin == 0 {
		cfg.StatusLEDPin = DefaultStatusLEDPin
	}

	if cfg.DebounceHold <= 0 {
		cfg.DebounceHold = DefaultDebounceHold
	}

	if cfg.CommandQueueSize <= 0 {
		cfg.CommandQueueSize = DefaultCommandQueueSize
	}

	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}

	if cfg.StopGracePeriod <= 0 {
		cfg.StopGracePeriod = DefaultStopGracePeriod
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return nil
}
