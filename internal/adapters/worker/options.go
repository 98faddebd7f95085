package worker

import (
	"github.com/okian/expwatch/pkg/logger"
)

type settings struct {
	limit  int
	logger logger.Logger
}

// Option applies a configuration option to a Stage.
type Option func(*settings)

// WithLimit caps concurrent tasks. Values below 1 are ignored.
func WithLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets a custom logger for the stage.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
