package config

import (
	"os"
	"path/filepath"
	"strings"

	"DistReduce/internal/types"
)

const (
	DefaultReducers  = 4
	DefaultBlockSize = 1 << 16
	DefaultOutput    = "result"
	DefaultLogLevel  = "INFO"
	DefaultApp       = "wordcount"
)

// Config holds the parameters of one job.
type Config struct {
	Input      string // Source file to split among workers
	Output     string // Shared output every reducer appends to
	ScratchDir string // Root of per-job scratch namespaces
	Reducers   int    // Partition count
	BlockSize  int64  // Target bytes per work unit before word alignment
	LogLevel   string
	App        string // "wordcount" or "grep"
	Pattern    string // grep only
}

// Default returns a Config with every optional field set.
func Default() Config {
	return Config{
		Output:     DefaultOutput,
		ScratchDir: filepath.Join(os.TempDir(), "distreduce"),
		Reducers:   DefaultReducers,
		BlockSize:  DefaultBlockSize,
		LogLevel:   DefaultLogLevel,
		App:        DefaultApp,
	}
}

// Validate reports the first problem with c as a coordinator config.
func (c Config) Validate() error {
	return c.ValidateFor(types.RoleCoordinator)
}

// ValidateFor checks the fields role needs. Workers learn the input and
// output paths from the coordinator, so they may leave them empty.
func (c Config) ValidateFor(role types.Role) error {
	if role == types.RoleCoordinator {
		if strings.TrimSpace(c.Input) == "" {
			return types.ConfigError("validate", "input path cannot be empty")
		}
		if c.Output == "" {
			return types.ConfigError("validate", "output path cannot be empty")
		}
	}
	if c.ScratchDir == "" {
		return types.ConfigError("validate", "scratch dir cannot be empty")
	}
	if c.Reducers < 1 {
		return types.ConfigError("validate", "reducer count must be positive, got %d", c.Reducers)
	}
	if c.BlockSize < 1 {
		return types.ConfigError("validate", "block size must be positive, got %d", c.BlockSize)
	}
	switch c.App {
	case "wordcount":
	case "grep":
		if c.Pattern == "" {
			return types.ConfigError("validate", "grep needs a pattern")
		}
	default:
		return types.ConfigError("validate", "unknown app %q", c.App)
	}
	return nil
}

// ValidateWorld checks that a topology can run a job: one coordinator and at
// least one worker.
func ValidateWorld(rank, worldSize int) error {
	if worldSize < 2 {
		return types.ConfigError("topology", "world size must be at least 2, got %d", worldSize)
	}
	if rank < 0 || rank >= worldSize {
		return types.ConfigError("topology", "rank %d out of range [0,%d)", rank, worldSize)
	}
	return nil
}
