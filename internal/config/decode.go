package config

import (
	"github.com/spf13/pflag"

	"hypercertsIndexer/internal/model"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	In       string
	Out      string
	Errors   string
	LogLevel string
	// ChainID overrides the chain id of records that carry none.
	ChainID uint64
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":       "./data/decoded_events.jsonl",
		"errors":    "./data/decode_errors.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		Errors:   v.GetString("errors"),
		LogLevel: v.GetString("log-level"),
		ChainID:  v.GetUint64("chain-id"),
	}
	if cfg.In == "" {
		return DecodeConfig{}, &model.ConfigurationError{Key: "in", Reason: "required"}
	}
	return cfg, nil
}
