package host

import (
	"os"
	"strings"

	apperrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	// DriverMemory keeps events in process memory; useful for tests and
	// ephemeral runs.
	DriverMemory = "memory"
	// DriverSQLite stores events in a SQLite database file.
	DriverSQLite = "sqlite"
)

// JournalConfig selects and parameterizes the event log.
type JournalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// SnapshotConfig controls the periodic snapshot sweep. An empty schedule
// disables snapshots.
type SnapshotConfig struct {
	Schedule string `yaml:"schedule"`
	Table    string `yaml:"table"`
}

// Config is the YAML-loadable host configuration.
type Config struct {
	Journal      JournalConfig  `yaml:"journal"`
	Snapshot     SnapshotConfig `yaml:"snapshot"`
	MailboxDepth int            `yaml:"mailbox_depth"`
}

// DefaultConfig returns an in-memory, snapshot-less configuration.
func DefaultConfig() Config {
	return Config{
		Journal:      JournalConfig{Driver: DriverMemory, Table: "events"},
		Snapshot:     SnapshotConfig{Table: "snapshots"},
		MailboxDepth: defaultMailboxDepth,
	}
}

// ParseConfig parses YAML on top of the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, apperrors.Wrap(err, apperrors.CategoryBadInput, "parse host config").
			WithTextCode("HOST_CONFIG_INVALID")
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), apperrors.Wrap(err, apperrors.CategoryBadInput, "read host config").
			WithTextCode("HOST_CONFIG_INVALID").
			WithMetadata(map[string]any{"path": path})
	}
	return ParseConfig(data)
}

// Validate checks driver selection and value ranges.
func (c Config) Validate() error {
	switch strings.TrimSpace(c.Journal.Driver) {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Journal.DSN) == "" {
			return apperrors.New("sqlite journal requires a dsn", apperrors.CategoryValidation).
				WithTextCode("HOST_CONFIG_INVALID")
		}
	default:
		return apperrors.New("unknown journal driver", apperrors.CategoryValidation).
			WithTextCode("HOST_CONFIG_INVALID").
			WithMetadata(map[string]any{"driver": c.Journal.Driver})
	}

	if c.MailboxDepth < 0 {
		return apperrors.New("mailbox depth cannot be negative", apperrors.CategoryValidation).
			WithTextCode("HOST_CONFIG_INVALID").
			WithMetadata(map[string]any{"mailbox_depth": c.MailboxDepth})
	}
	return nil
}
