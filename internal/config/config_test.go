package config

import (
	"fmt"
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	strs map[string]string
	ints map[string]int
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strs[key]
	return v, ok, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *mapBackend) SetString(key, val string) error {
	if m.strs == nil {
		m.strs = make(map[string]string)
	}
	m.strs[key] = val
	return nil
}

func (m *mapBackend) SetInt(key string, val int) error {
	if m.ints == nil {
		m.ints = make(map[string]int)
	}
	m.ints[key] = val
	return nil
}

func (m *mapBackend) Delete(key string) error {
	delete(m.strs, key)
	delete(m.ints, key)
	return nil
}

// mockKeychain records lookups and serves secrets by account name.
type mockKeychain struct {
	secrets map[string]string
	calls   []string
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	m.calls = append(m.calls, service+"/"+account)
	v, ok := m.secrets[account]
	if !ok {
		return "", fmt.Errorf("account %q not found", account)
	}
	return v, nil
}

// clearEnv neutralizes any SATCHEL_* overrides from the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(&mapBackend{}, &mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Cache.Root != ".cache" {
		t.Errorf("Cache.Root = %q, want .cache", cfg.Cache.Root)
	}
	if cfg.Cache.MaxSizeMB != 100 {
		t.Errorf("Cache.MaxSizeMB = %d, want 100", cfg.Cache.MaxSizeMB)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Research.BatchSize != 10 {
		t.Errorf("Research.BatchSize = %d, want 10", cfg.Research.BatchSize)
	}
	if cfg.Research.Parallel != 4 {
		t.Errorf("Research.Parallel = %d, want 4", cfg.Research.Parallel)
	}
	if cfg.Research.TargetCount != 569 {
		t.Errorf("Research.TargetCount = %d, want 569", cfg.Research.TargetCount)
	}
	if cfg.Research.PollInterval != "60s" {
		t.Errorf("Research.PollInterval = %q, want 60s", cfg.Research.PollInterval)
	}
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless = false, want true by default")
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
	if cfg.NCBI.APIKey != "" || cfg.OpenFDA.APIKey != "" {
		t.Error("API keys should be empty by default")
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{
		strs: map[string]string{
			"log.level":        "debug",
			"ncbi.email":       "team@satchelworks.example",
			"browser.headless": "false",
		},
		ints: map[string]int{
			"server.port":       5000,
			"cache.max_size_mb": 250,
		},
	}
	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.NCBI.Email != "team@satchelworks.example" {
		t.Errorf("NCBI.Email = %q", cfg.NCBI.Email)
	}
	if cfg.Browser.Headless {
		t.Error("Browser.Headless = true, want false from backend")
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Cache.MaxSizeMB != 250 {
		t.Errorf("Cache.MaxSizeMB = %d, want 250", cfg.Cache.MaxSizeMB)
	}
	// Keys absent from the backend keep their defaults.
	if cfg.Cache.Root != ".cache" {
		t.Errorf("Cache.Root = %q, want default .cache", cfg.Cache.Root)
	}
}

func TestBackendBadBoolKeepsDefault(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{strs: map[string]string{"browser.headless": "definitely"}}
	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if !cfg.Browser.Headless {
		t.Error("unparseable bool should leave the default in place")
	}
}

func TestBackendIgnoresSecrets(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{strs: map[string]string{"ncbi.api_key": "leaked"}}
	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.NCBI.APIKey != "" {
		t.Errorf("NCBI.APIKey = %q, secrets must not come from the config backend", cfg.NCBI.APIKey)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("SATCHEL_SERVER_PORT", "7777")
	t.Setenv("SATCHEL_LOG_LEVEL", "warn")
	t.Setenv("SATCHEL_BROWSER_HEADLESS", "false")

	b := &mapBackend{
		strs: map[string]string{"log.level": "debug"},
		ints: map[string]int{"server.port": 5000},
	}
	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want env override warn", cfg.Log.Level)
	}
	if cfg.Browser.Headless {
		t.Error("Browser.Headless = true, want env override false")
	}
}

func TestEnvBadIntKeepsBackendValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("SATCHEL_SERVER_PORT", "not-a-number")

	b := &mapBackend{ints: map[string]int{"server.port": 5000}}
	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want backend 5000 after bad env value", cfg.Server.Port)
	}
}

func TestSecretFallsBackToKeychain(t *testing.T) {
	clearEnv(t)

	kc := &mockKeychain{secrets: map[string]string{"ncbi_api_key": "kc-ncbi"}}
	cfg, err := loadWith(&mapBackend{}, kc)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.NCBI.APIKey != "kc-ncbi" {
		t.Errorf("NCBI.APIKey = %q, want kc-ncbi", cfg.NCBI.APIKey)
	}
	if cfg.OpenFDA.APIKey != "" {
		t.Errorf("OpenFDA.APIKey = %q, want empty", cfg.OpenFDA.APIKey)
	}
	for _, call := range kc.calls {
		if !strings.HasPrefix(call, "satchel/") {
			t.Errorf("keychain lookup used service %q, want satchel", call)
		}
	}
}

func TestEnvSecretSkipsKeychain(t *testing.T) {
	clearEnv(t)
	t.Setenv("SATCHEL_NCBI_API_KEY", "env-ncbi")

	kc := &mockKeychain{secrets: map[string]string{"ncbi_api_key": "kc-ncbi"}}
	cfg, err := loadWith(&mapBackend{}, kc)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.NCBI.APIKey != "env-ncbi" {
		t.Errorf("NCBI.APIKey = %q, want env-ncbi", cfg.NCBI.APIKey)
	}
	for _, call := range kc.calls {
		if call == "satchel/ncbi_api_key" {
			t.Error("keychain consulted for a secret already set via env")
		}
	}
}

func TestShowAllExcludesSecrets(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(&mapBackend{}, &mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(specs)-2 {
		t.Errorf("ShowAll returned %d entries, want %d", len(infos), len(specs)-2)
	}
	for _, info := range infos {
		if strings.Contains(info.Key, "api_key") {
			t.Errorf("ShowAll leaked secret key %q", info.Key)
		}
		if info.EnvVar == "" {
			t.Errorf("key %q has no env var", info.Key)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()

	want := map[string]bool{"server.port": false, "browser.headless": false}
	for _, k := range keys {
		if k == "ncbi.api_key" || k == "openfda.api_key" {
			t.Errorf("ValidKeys includes secret %q", k)
		}
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("ValidKeys missing %q", k)
		}
	}
}

func TestSecretKeys(t *testing.T) {
	keys := SecretKeys()
	if len(keys) != 2 {
		t.Fatalf("SecretKeys = %v, want exactly ncbi.api_key and openfda.api_key", keys)
	}
	got := map[string]bool{keys[0]: true, keys[1]: true}
	if !got["ncbi.api_key"] || !got["openfda.api_key"] {
		t.Errorf("SecretKeys = %v", keys)
	}
}

func TestSecretAccount(t *testing.T) {
	if got := secretAccount("ncbi.api_key"); got != "ncbi_api_key" {
		t.Errorf("secretAccount = %q, want ncbi_api_key", got)
	}
}

func TestGetAPIToken(t *testing.T) {
	var stored map[string]string

	store := func(service, account, value string) error {
		if service != "satchel" {
			t.Errorf("store used service %q, want satchel", service)
		}
		if stored == nil {
			stored = make(map[string]string)
		}
		stored[account] = value
		return nil
	}

	// First call generates and persists a token.
	token, err := getAPIToken(&mockKeychain{}, store)
	if err != nil {
		t.Fatalf("getAPIToken: %v", err)
	}
	if len(token) != 48 {
		t.Errorf("token length = %d, want 48 hex chars", len(token))
	}
	if stored["api_token"] != token {
		t.Errorf("token not persisted: %v", stored)
	}

	// Existing token is returned as is, nothing stored.
	stored = nil
	kc := &mockKeychain{secrets: map[string]string{"api_token": "existing-token"}}
	token, err = getAPIToken(kc, store)
	if err != nil {
		t.Fatalf("getAPIToken: %v", err)
	}
	if token != "existing-token" {
		t.Errorf("token = %q, want existing-token", token)
	}
	if stored != nil {
		t.Errorf("store called for an existing token: %v", stored)
	}
}

func TestSetKeyValidation(t *testing.T) {
	if err := SetKey("no.such.key", "x"); err == nil {
		t.Error("SetKey accepted an unknown key")
	}
	if err := SetKey("ncbi.api_key", "x"); err == nil {
		t.Error("SetKey accepted a secret key")
	}
	if err := SetSecret("server.port", "x"); err == nil {
		t.Error("SetSecret accepted a non-secret key")
	}
	if err := SetSecret("no.such.key", "x"); err == nil {
		t.Error("SetSecret accepted an unknown key")
	}
}
