// Command collect runs one collection over the configured roster, appends
// the snapshots to the ledger and exits. It is meant for cron jobs and CI
// runners that keep the ledger file between runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	app "github.com/okian/expwatch/internal/app"
	"github.com/okian/expwatch/internal/collector"
	"github.com/okian/expwatch/internal/config"
	"github.com/okian/expwatch/pkg/logger"
)

// Default configuration constants.
const (
	defaultRunTimeout = 5 * time.Minute
)

func main() {
	var (
		configFile = flag.String("config", "", "YAML config file (overrides EXPWATCH_CONFIG)")
		roster     = flag.String("roster", "", "Comma separated names (overrides the configured roster)")
		ledgerPath = flag.String("ledger", "", "Ledger path (overrides ledger_path)")
		timeout    = flag.Duration("timeout", defaultRunTimeout, "Deadline for the whole run")
		report     = flag.Bool("json", false, "Print the batch as JSON on stdout")
		strict     = flag.Bool("strict", false, "Exit non-zero when any name failed")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *configFile != "" {
		_ = os.Setenv("EXPWATCH_CONFIG", *configFile)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	applyOverrides(cfg, *roster, *ledgerPath)

	out := io.Discard
	if *report {
		out = os.Stdout
	}
	code := run(ctx, cfg, out, os.Stderr, *strict)
	os.Exit(code)
}

// applyOverrides lets flags replace the loaded roster and ledger path.
func applyOverrides(cfg *config.Config, roster, ledgerPath string) {
	if strings.TrimSpace(roster) != "" {
		cfg.Roster = collector.NormalizeRoster(strings.Split(roster, ","))
	}
	if strings.TrimSpace(ledgerPath) != "" {
		cfg.LedgerPath = ledgerPath
	}
}

// run performs one collection and returns the process exit code. The batch
// goes to out and logs go to logOut.
func run(ctx context.Context, cfg *config.Config, out, logOut io.Writer, strict bool) int {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(logOut)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	log := logger.Named("collect")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := app.FromConfig(ctx, cfg, logger.Get())
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error(ctx, "failed to close ledger", logger.Error(err))
		}
	}()

	batch, err := svc.Collect(ctx)
	_ = json.NewEncoder(out).Encode(batch)
	switch {
	case errors.Is(err, collector.ErrUpstreamOutage):
		log.Error(ctx, "upstream outage; nothing appended", logger.Int("attempted", batch.Attempted))
		return 2
	case err != nil:
		log.Error(ctx, "collection failed", logger.Error(err))
		return 1
	}

	log.Info(ctx, "collection finished",
		logger.String("run_id", batch.RunID.String()),
		logger.Int("snapshots", len(batch.Snapshots)),
		logger.Int("failures", len(batch.Failures)),
	)
	if strict && len(batch.Failures) > 0 {
		return 3
	}
	return 0
}
