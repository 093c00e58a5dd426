package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SATCHEL_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "cache.root", typ: kString, env: "SATCHEL_CACHE_ROOT",
		apply:   func(cfg *Config, v any) { cfg.Cache.Root = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.Root },
	},
	{
		key: "cache.max_size_mb", typ: kInt, env: "SATCHEL_CACHE_MAX_SIZE_MB",
		apply:   func(cfg *Config, v any) { cfg.Cache.MaxSizeMB = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.MaxSizeMB },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SATCHEL_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "SATCHEL_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "ncbi.email", typ: kString, env: "SATCHEL_NCBI_EMAIL",
		apply:   func(cfg *Config, v any) { cfg.NCBI.Email = v.(string) },
		extract: func(cfg Config) any { return cfg.NCBI.Email },
	},
	{
		key: "ncbi.api_key", typ: kString, env: "SATCHEL_NCBI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.NCBI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.NCBI.APIKey },
	},
	{
		key: "openfda.api_key", typ: kString, env: "SATCHEL_OPENFDA_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenFDA.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenFDA.APIKey },
	},
	{
		key: "research.batch_size", typ: kInt, env: "SATCHEL_RESEARCH_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Research.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Research.BatchSize },
	},
	{
		key: "research.parallel", typ: kInt, env: "SATCHEL_RESEARCH_PARALLEL",
		apply:   func(cfg *Config, v any) { cfg.Research.Parallel = v.(int) },
		extract: func(cfg Config) any { return cfg.Research.Parallel },
	},
	{
		key: "research.target_count", typ: kInt, env: "SATCHEL_RESEARCH_TARGET_COUNT",
		apply:   func(cfg *Config, v any) { cfg.Research.TargetCount = v.(int) },
		extract: func(cfg Config) any { return cfg.Research.TargetCount },
	},
	{
		key: "research.poll_interval", typ: kString, env: "SATCHEL_RESEARCH_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Research.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Research.PollInterval },
	},
	{
		key: "browser.headless", typ: kBool, env: "SATCHEL_BROWSER_HEADLESS",
		apply:   func(cfg *Config, v any) { cfg.Browser.Headless = v.(bool) },
		extract: func(cfg Config) any { return cfg.Browser.Headless },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
