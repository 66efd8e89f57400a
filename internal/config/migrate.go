package config

import (
	"github.com/spf13/pflag"

	"hypercertsIndexer/internal/model"
)

// MigrateConfig holds configuration for the migrate command.
type MigrateConfig struct {
	PGDSN    string
	LogLevel string
	// Seeds are minter and EAS contracts registered after migrating.
	Seeds []model.ContractSeed
}

// LoadMigrate merges .env files, config file, environment variables, and
// flags into MigrateConfig.
func LoadMigrate(cfgFile string, flags *pflag.FlagSet) (MigrateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"log-level": "info",
	})
	if err != nil {
		return MigrateConfig{}, err
	}

	seeds, err := ParseContractSeeds(getStringSlice(v, "contracts"))
	if err != nil {
		return MigrateConfig{}, err
	}
	startBlocks, err := parseStartBlocks(getStringMap(v, "eas-start-block"))
	if err != nil {
		return MigrateConfig{}, err
	}
	easSeeds, err := EASSeeds(startBlocks)
	if err != nil {
		return MigrateConfig{}, err
	}

	cfg := MigrateConfig{
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
		Seeds:    append(seeds, easSeeds...),
	}
	if cfg.PGDSN == "" {
		return MigrateConfig{}, &model.ConfigurationError{Key: "pg-dsn", Reason: "required"}
	}
	return cfg, nil
}
