package config

import "strings"

type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Log      LogConfig
	NCBI     NCBIConfig
	OpenFDA  OpenFDAConfig
	Research ResearchConfig
	Browser  BrowserConfig
}

type ServerConfig struct {
	Port int
}

type CacheConfig struct {
	Root      string
	MaxSizeMB int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type NCBIConfig struct {
	Email  string
	APIKey string
}

type OpenFDAConfig struct {
	APIKey string
}

type ResearchConfig struct {
	BatchSize    int
	Parallel     int
	TargetCount  int
	PollInterval string
}

type BrowserConfig struct {
	Headless bool
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Cache: CacheConfig{
			Root:      ".cache",
			MaxSizeMB: 100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Research: ResearchConfig{
			BatchSize:    10,
			Parallel:     4,
			TargetCount:  569,
			PollInterval: "60s",
		},
		Browser: BrowserConfig{
			Headless: true,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.satchelworks.satchel)
// and secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/satchel/config.json
// and secrets fall back to $XDG_DATA_HOME/satchel/secrets.json.
//
// Environment variables (SATCHEL_*) override backend values on all
// platforms. API keys are optional; NCBI and openFDA serve keyless
// clients at reduced rate limits.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts the secret store for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Secrets not set via env fall back to the platform secret store.
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if cur, _ := s.extract(cfg).(string); cur != "" {
			continue
		}
		if v, err := kc.Get(keychainService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	return cfg, nil
}

const keychainService = "satchel"

// secretAccount maps a config key to its secret-store account name.
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
