package file

// Config places the on-disk queues that hold metric values and summary
// statistics until the sender has published them to the results database.
type Config struct {
	// Workspace is the directory holding one queue file per insert statement.
	Workspace string
	// MaxHistory is how many corrupted files are kept for inspection.
	MaxHistory int
}

// ConfigDefault keeps queue files in /tmp and the last three corrupted ones.
var ConfigDefault = Config{
	Workspace:  "/tmp",
	MaxHistory: 3,
}

// configDefault fills an empty workspace and clamps a negative history.
func configDefault(config ...Config) Config {
	if len(config) < 1 {
		return ConfigDefault
	}

	cfg := config[0]

	if cfg.Workspace == "" {
		cfg.Workspace = ConfigDefault.Workspace
	}

	if cfg.MaxHistory < 0 {
		cfg.MaxHistory = 0
	}

	return cfg
}
