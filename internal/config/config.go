package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hypercertsIndexer/internal/chain"
	"hypercertsIndexer/internal/model"
)

// Config holds configuration for the run command.
type Config struct {
	ChainIDs      []uint64
	RPCURLs       map[uint64]string
	PGDSN         string
	BatchSize     uint64
	LogRangeLimit uint64
	PollInterval  time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration

	QueueConcurrency int
	QueueSize        int
	QueueRPS         float64
	QueueBurst       int

	IPFSGateways []string
	HTTPTimeout  time.Duration

	ReconcileInterval     time.Duration
	ReconcileBatch        int
	ReconcileRetryInvalid bool
	MetadataInterval      time.Duration
	MetadataBatch         int

	// SchemaUIDs lists the EAS schemas indexed per chain.
	SchemaUIDs map[uint64][]string
	// RawLogs is an optional JSONL path receiving every fetched log.
	RawLogs string

	MetricsAddr string
	LogLevel    string
	SentryDSN   string
}

// Load merges .env files, config file, environment variables, and flags
// into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"poll-interval":      15 * time.Second,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"queue-concurrency":  8,
		"queue-size":         256,
		"queue-rps":          10.0,
		"queue-burst":        10,
		"ipfs-gateways":      "https://ipfs.io,https://w3s.link",
		"http-timeout":       30 * time.Second,
		"reconcile-interval": time.Minute,
		"reconcile-batch":    50,
		"metadata-interval":  time.Minute,
		"metadata-batch":     50,
		"metrics-addr":       ":9090",
		"log-level":          "info",
	})
	if err != nil {
		return Config{}, err
	}

	chainIDs, err := parseChainIDs(getStringSlice(v, "chain-ids"))
	if err != nil {
		return Config{}, err
	}
	rpcURLs, err := parseChainMap(getStringMap(v, "rpc-urls"), "rpc-urls")
	if err != nil {
		return Config{}, err
	}
	schemaUIDs, err := parseSchemaUIDs(getStringSlice(v, "eas-schema-uids"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ChainIDs:              chainIDs,
		RPCURLs:               rpcURLs,
		PGDSN:                 v.GetString("pg-dsn"),
		BatchSize:             v.GetUint64("batch-size"),
		LogRangeLimit:         v.GetUint64("log-range-limit"),
		PollInterval:          v.GetDuration("poll-interval"),
		MaxRetries:            v.GetInt("max-retries"),
		RetryBackoff:          v.GetDuration("retry-backoff"),
		QueueConcurrency:      v.GetInt("queue-concurrency"),
		QueueSize:             v.GetInt("queue-size"),
		QueueRPS:              v.GetFloat64("queue-rps"),
		QueueBurst:            v.GetInt("queue-burst"),
		IPFSGateways:          getStringSlice(v, "ipfs-gateways"),
		HTTPTimeout:           v.GetDuration("http-timeout"),
		ReconcileInterval:     v.GetDuration("reconcile-interval"),
		ReconcileBatch:        v.GetInt("reconcile-batch"),
		ReconcileRetryInvalid: v.GetBool("reconcile-retry-invalid"),
		MetadataInterval:      v.GetDuration("metadata-interval"),
		MetadataBatch:         v.GetInt("metadata-batch"),
		SchemaUIDs:            schemaUIDs,
		RawLogs:               v.GetString("raw-logs"),
		MetricsAddr:           v.GetString("metrics-addr"),
		LogLevel:              v.GetString("log-level"),
		SentryDSN:             v.GetString("sentry-dsn"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the run command cannot start without.
func (c Config) Validate() error {
	if len(c.ChainIDs) == 0 {
		return &model.ConfigurationError{Key: "chain-ids", Reason: "at least one chain id is required"}
	}
	for _, id := range c.ChainIDs {
		if _, err := chain.Lookup(id); err != nil {
			return err
		}
		if c.RPCURLs[id] == "" {
			return &model.ConfigurationError{Key: "rpc-urls", Reason: fmt.Sprintf("missing rpc url for chain %d", id)}
		}
	}
	if c.PGDSN == "" {
		return &model.ConfigurationError{Key: "pg-dsn", Reason: "required"}
	}
	if c.BatchSize == 0 {
		return &model.ConfigurationError{Key: "batch-size", Reason: "must be greater than zero"}
	}
	if c.PollInterval <= 0 || c.ReconcileInterval <= 0 || c.MetadataInterval <= 0 {
		return &model.ConfigurationError{Key: "poll-interval", Reason: "intervals must be greater than zero"}
	}
	if c.QueueConcurrency <= 0 {
		return &model.ConfigurationError{Key: "queue-concurrency", Reason: "must be greater than zero"}
	}
	if len(c.IPFSGateways) == 0 {
		return &model.ConfigurationError{Key: "ipfs-gateways", Reason: "at least one gateway is required"}
	}
	return nil
}

// newViper builds a viper instance with the shared sources: .env files,
// INDEXER_ environment variables, an optional config file and flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	// Existing variables win; .env.local is read first so it wins over .env.
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return parseStringMap(strings.Join(items, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func parseChainIDs(items []string) ([]uint64, error) {
	out := make([]uint64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseUint(item, 10, 64)
		if err != nil {
			return nil, &model.ConfigurationError{Key: "chain-ids", Reason: fmt.Sprintf("invalid chain id %q", item)}
		}
		out = append(out, id)
	}
	return out, nil
}

func parseChainMap(in map[string]string, key string) (map[uint64]string, error) {
	out := make(map[uint64]string, len(in))
	for k, value := range in {
		id, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return nil, &model.ConfigurationError{Key: key, Reason: fmt.Sprintf("invalid chain id %q", k)}
		}
		out[id] = value
	}
	return out, nil
}
