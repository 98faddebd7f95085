package service

import (
	"context"
	"fmt"

	"github.com/okian/expwatch/internal/adapters/ledger"
	"github.com/okian/expwatch/internal/adapters/nexon"
	"github.com/okian/expwatch/internal/collector"
	"github.com/okian/expwatch/internal/config"
	"github.com/okian/expwatch/pkg/logger"
)

// FromConfig wires the level table, ledger, upstream client and collector
// described by cfg into a Service. The caller owns the returned Service
// and must Close it.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	table, err := config.LoadLevelTable(ctx, cfg.LevelTablePath)
	if err != nil {
		return nil, err
	}

	store, err := ledger.Open(ctx, cfg.LedgerDriver, cfg.LedgerPath, ledger.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if cfg.APIKey == "" {
		log.Warn(ctx, "api_key is empty; upstream calls will be rejected")
	}
	client := nexon.New(
		nexon.WithBaseURL(cfg.APIBaseURL),
		nexon.WithAPIKey(cfg.APIKey),
		nexon.WithTimeout(cfg.RequestTimeout),
		nexon.WithRateLimit(cfg.RateLimitPerSec, cfg.RateBurst),
		nexon.WithLogger(log),
	)

	var resolver collector.Resolver = client
	if cfg.ResolverCacheSize > 0 {
		resolver = nexon.NewCachingResolver(client, cfg.ResolverCacheSize, cfg.ResolverCacheTTL)
	}
	col := collector.New(resolver, client,
		collector.WithConcurrency(cfg.Concurrency),
		collector.WithLogger(log),
	)

	lo, hi := table.Range()
	log.Info(ctx, "service wired",
		logger.String("ledger", cfg.LedgerDriver),
		logger.Int("roster", len(cfg.Roster)),
		logger.Int("concurrency", cfg.Concurrency),
		logger.Int("min_level", lo),
		logger.Int("max_level", hi),
		logger.Bool("resolver_cache", cfg.ResolverCacheSize > 0),
	)

	return New(col, store, table,
		WithRoster(cfg.Roster),
		WithTopN(cfg.TopN),
		WithMaxLimit(cfg.MaxLimit),
		WithWindow(cfg.VelocityWindow),
		WithMilestoneLevel(cfg.MilestoneLevel),
		WithLogger(log.Named("service")),
	), nil
}
