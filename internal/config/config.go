package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for dbrevert.
type Config struct {
	HostID     string           `toml:"host_id"`
	RootDir    string           `toml:"root_dir"` // working tree holding the databases
	LogDir     string           `toml:"log_dir"`
	Tracking   TrackingConfig   `toml:"tracking"`
	Detection  DetectionConfig  `toml:"detection"`
	History    HistoryConfig    `toml:"history"`
	Retention  RetentionConfig  `toml:"retention"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// TrackingConfig names the database files the tool knows about.
type TrackingConfig struct {
	// Extensions of tracked database files, without the dot.
	Extensions []string `toml:"extensions"`

	// EventLog is the logical base name of the primary log database whose
	// backups anchor detection.
	EventLog string `toml:"event_log"`

	// Sentinels are base names of databases opened immediately after
	// application start; their simultaneous backups corroborate an event.
	Sentinels []string `toml:"sentinels"`

	// NonRecoverable are base names the application regenerates on next
	// start; they are deleted outright during a restore.
	NonRecoverable []string `toml:"non_recoverable"`
}

// DetectionConfig holds the correlation-window constants.
type DetectionConfig struct {
	WindowDays    int `toml:"window_days"`
	MarginSeconds int `toml:"margin_seconds"`
	MinSentinels  int `toml:"min_sentinels"`
}

// HistoryConfig configures the run audit log.
// Tagged union: Type selects which other fields apply.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RetentionConfig configures off-site retention of displaced originals.
// A zero vault type disables retention entirely.
type RetentionConfig struct {
	Vault   VaultConfig `toml:"vault"`
	Encrypt bool        `toml:"encrypt"` // age-encrypt archives before upload
}

// VaultConfig selects a retention backend.
// Tagged union: Type selects which other fields apply.
type VaultConfig struct {
	Type string `toml:"type"` // "", "memory", "filesystem", or "s3"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3"). When the access key
	// is empty the SDK's default credential chain applies.
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for archive
// encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a Config with the provided identity and the default
// tracking set, detection constants, and key paths.
func NewConfig(hostID, rootDir, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		RootDir: rootDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Tracking: TrackingConfig{
			Extensions:     []string{"edb"},
			EventLog:       "operations.edb",
			Sentinels:      []string{"settings.edb", "accounts.edb", "folders.edb"},
			NonRecoverable: []string{"cache.edb", "credentials.edb"},
		},
		Detection: DetectionConfig{
			WindowDays:    3,
			MarginSeconds: 3,
			MinSentinels:  2,
		},
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "dbrevert.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "dbrevert.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
