package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile_YAML(t *testing.T) {
	yamlContent := `
database:
  host: db.internal
  port: 3307
  user: misp_ro
  password: secret
  database: misp
extraction:
  hours_lookback: 48
  ioc_types:
    - ip-src
    - domain
output:
  json_file: out/iocs.json
  cache_db: out/cache.db
  backup_db: out/cache_yesterday.db
`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected host 'db.internal', got %s", cfg.Database.Host)
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("expected port 3307, got %d", cfg.Database.Port)
	}
	if cfg.Extraction.HoursLookback != 48 {
		t.Errorf("expected hours_lookback 48, got %d", cfg.Extraction.HoursLookback)
	}
	if len(cfg.Extraction.IOCTypes) != 2 || cfg.Extraction.IOCTypes[1] != "domain" {
		t.Errorf("unexpected ioc_types: %v", cfg.Extraction.IOCTypes)
	}
	if cfg.Output.JSONFile != "out/iocs.json" {
		t.Errorf("unexpected json_file: %s", cfg.Output.JSONFile)
	}
	if cfg.Output.BackupDB != "out/cache_yesterday.db" {
		t.Errorf("unexpected backup_db: %s", cfg.Output.BackupDB)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	jsonContent := `{
		"database": {"host": "localhost", "user": "misp", "password": "pw"},
		"extraction": {"hours_lookback": 12},
		"output": {"json_file": "iocs.json"}
	}`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configFile, []byte(jsonContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}

	if cfg.Extraction.HoursLookback != 12 {
		t.Errorf("expected hours_lookback 12, got %d", cfg.Extraction.HoursLookback)
	}
	// Unset fields pick up defaults.
	if cfg.Database.Port != 3306 {
		t.Errorf("expected default port 3306, got %d", cfg.Database.Port)
	}
	if cfg.Output.CacheDB != "ioc_cache.db" {
		t.Errorf("expected default cache_db, got %s", cfg.Output.CacheDB)
	}
	if len(cfg.Extraction.IOCTypes) != len(DefaultIOCTypes) {
		t.Errorf("expected default ioc_types, got %v", cfg.Extraction.IOCTypes)
	}
}

func TestLoadFromFile_UnsupportedExt(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configFile, []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(configFile); err == nil {
		t.Error("expected error for unsupported config format")
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Database.Host != "localhost" {
		t.Errorf("expected default host 'localhost', got %s", cfg.Database.Host)
	}
	if cfg.Database.Database != "misp" {
		t.Errorf("expected default database 'misp', got %s", cfg.Database.Database)
	}
	if cfg.Extraction.HoursLookback != 24 {
		t.Errorf("expected default hours_lookback 24, got %d", cfg.Extraction.HoursLookback)
	}
	if len(cfg.Extraction.IOCTypes) != 15 {
		t.Errorf("expected 15 default ioc types, got %d", len(cfg.Extraction.IOCTypes))
	}
	if cfg.Output.BackupDB != "ioc_cache_yesterday.db" {
		t.Errorf("unexpected default backup_db: %s", cfg.Output.BackupDB)
	}
	if cfg.LogFile != "mispextract.log" {
		t.Errorf("unexpected default log_file: %s", cfg.LogFile)
	}
}

func TestDefault_PlaceholderCredentials(t *testing.T) {
	cfg := Default()
	if cfg.Database.User != "USERNAME" || cfg.Database.Password != "PASSWORD" {
		t.Errorf("fallback config must carry placeholder credentials, got %s/%s",
			cfg.Database.User, cfg.Database.Password)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("fallback config must validate so the run fails at connect, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{}
		c.SetDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Database.Port = 70000 }, wantErr: true},
		{name: "zero lookback", mutate: func(c *Config) { c.Extraction.HoursLookback = 0 }, wantErr: true},
		{name: "no ioc types", mutate: func(c *Config) { c.Extraction.IOCTypes = nil }, wantErr: true},
		{name: "missing json file", mutate: func(c *Config) { c.Output.JSONFile = "" }, wantErr: true},
		{name: "cache equals backup", mutate: func(c *Config) { c.Output.BackupDB = c.Output.CacheDB }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	flags := map[string]interface{}{
		"hours_lookback": 72,
		"json_file":      "other.json",
		"push_gateway":   "http://pushgw:9091",
	}

	cfg.MergeWithFlags(flags)

	if cfg.Extraction.HoursLookback != 72 {
		t.Errorf("expected hours_lookback to be overridden to 72, got %d", cfg.Extraction.HoursLookback)
	}
	if cfg.Output.JSONFile != "other.json" {
		t.Errorf("expected json_file to be overridden, got %s", cfg.Output.JSONFile)
	}
	if cfg.Output.CacheDB != "ioc_cache.db" {
		t.Errorf("expected cache_db to keep its value, got %s", cfg.Output.CacheDB)
	}
	if cfg.PushGateway != "http://pushgw:9091" {
		t.Errorf("expected push_gateway to be set, got %s", cfg.PushGateway)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MISP_DB_HOST", "env-host")
	t.Setenv("MISP_DB_PORT", "13306")
	t.Setenv("MISP_DB_PASSWORD", "env-secret")

	cfg := &Config{}
	cfg.SetDefaults()
	cfg.LoadFromEnv()

	if cfg.Database.Host != "env-host" {
		t.Errorf("expected host from env, got %s", cfg.Database.Host)
	}
	if cfg.Database.Port != 13306 {
		t.Errorf("expected port from env, got %d", cfg.Database.Port)
	}
	if cfg.Database.Password != "env-secret" {
		t.Errorf("expected password from env, got %s", cfg.Database.Password)
	}
}
