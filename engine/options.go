package engine

import "go.uber.org/zap"

// defaultMaxEntries bounds the memtable before a flush is triggered.
const defaultMaxEntries = 1024

// config collects the Engine's construction-time parameters, assembled by
// applying each Option in order over a set of defaults.
type config struct {
	dir        string
	maxEntries int
	logger     *zap.SugaredLogger
}

// Option configures an Engine at construction time.
type Option func(*config)

// Dir sets the directory the engine's WAL and generation files live in.
// Required: New returns an error if it is never set.
func Dir(dir string) Option {
	return func(c *config) { c.dir = dir }
}

// MaxEntries overrides the memtable's flush threshold.
func MaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// Logger overrides the engine's structured logger. The default is a no-op
// logger, so omitting this option is safe.
func Logger(log *zap.SugaredLogger) Option {
	return func(c *config) { c.logger = log }
}

func newConfig(opts ...Option) config {
	c := config{maxEntries: defaultMaxEntries}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
