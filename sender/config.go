package sender

import (
	"os"
	"time"

	"github.com/farwydi/sferror"
)

// Config defines the config for the result sender.
type Config struct {
	Logger sferror.Logger
	// SendInterval is the pause between two publications.
	SendInterval time.Duration
	// SendLimit caps the rows taken from the queues per publication.
	SendLimit int
	// UseMemoryFallback keeps rows in memory when the workspace cannot be
	// written.
	UseMemoryFallback bool
	// FileWorkspace holds the durable queue files.
	FileWorkspace string
	// MaxCorruptedFiles is how many corrupted queue files are kept aside.
	MaxCorruptedFiles int
	// ShowSuccessfulInfo logs every successful publication.
	ShowSuccessfulInfo bool
}

// ConfigDefault is the default config
var ConfigDefault = Config{
	SendInterval:       time.Second,
	SendLimit:          5000,
	UseMemoryFallback:  true,
	FileWorkspace:      os.TempDir(),
	MaxCorruptedFiles:  1,
	ShowSuccessfulInfo: false,
}

// Helper function to set default values
func configDefault(config ...Config) Config {
	// Return default config if nothing provided
	if len(config) < 1 {
		return ConfigDefault
	}

	// Override default config
	cfg := config[0]

	if cfg.FileWorkspace == "" {
		cfg.FileWorkspace, _ = os.MkdirTemp("", "sferror")
	}

	if cfg.SendLimit <= 0 {
		cfg.SendLimit = 1
	}

	if cfg.SendInterval < 100*time.Millisecond {
		cfg.SendInterval = 100 * time.Millisecond
	}

	return cfg
}
