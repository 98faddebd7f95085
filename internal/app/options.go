package service

import (
	"time"

	"github.com/okian/expwatch/pkg/logger"
)

// Default service configuration constants.
const (
	defaultTopN           = 20
	defaultMaxLimit       = 200
	defaultWindow         = 6 * time.Hour
	defaultMilestoneLevel = 270
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRoster sets the names sampled by Collect.
func WithRoster(names []string) Option {
	return func(s *Service) {
		s.roster = append([]string(nil), names...)
	}
}

// WithTopN sets the default ranking size and the default selection size.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithMaxLimit caps the ranking size a caller may request.
func WithMaxLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithWindow sets the default velocity window, ending at the latest sample.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithMilestoneLevel sets the level used when a milestone query names none.
func WithMilestoneLevel(level int) Option {
	return func(s *Service) {
		if level > 0 {
			s.milestoneLevel = level
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
