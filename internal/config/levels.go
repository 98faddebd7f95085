package config

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/expwatch/internal/domain/leveltable"
)

// levelFile is the on-disk shape of a level table. Either Levels is set, or
// the compact FirstLevel/FirstBaseExp/Required triple.
type levelFile struct {
	Levels       []leveltable.Entry `koanf:"levels"`
	FirstLevel   int                `koanf:"first_level"`
	FirstBaseExp int64              `koanf:"first_base_exp"`
	Required     []int64            `koanf:"required"`
}

// LoadLevelTable reads and validates the level table at path.
func LoadLevelTable(_ context.Context, path string) (*leveltable.Table, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: level_table_path must not be empty", ErrInvalidConfig)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}

	var lf levelFile
	if err := k.UnmarshalWithConf("", &lf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}

	var (
		table *leveltable.Table
		err   error
	)
	switch {
	case len(lf.Levels) > 0 && len(lf.Required) > 0:
		return nil, fmt.Errorf("%w: %s: set either levels or required, not both", ErrInvalidConfig, path)
	case len(lf.Levels) > 0:
		table, err = leveltable.New(lf.Levels)
	default:
		table, err = leveltable.FromRequirements(lf.FirstLevel, lf.FirstBaseExp, lf.Required)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return table, nil
}
