package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Database holds the MISP MySQL connection parameters.
type Database struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
}

// Extraction controls the delta window and the attribute types pulled.
type Extraction struct {
	HoursLookback int      `yaml:"hours_lookback" json:"hours_lookback"`
	IOCTypes      []string `yaml:"ioc_types" json:"ioc_types"`
}

// Output holds the three sink paths.
type Output struct {
	JSONFile string `yaml:"json_file" json:"json_file"`
	CacheDB  string `yaml:"cache_db" json:"cache_db"`
	BackupDB string `yaml:"backup_db" json:"backup_db"`
}

// Config represents the complete configuration for a run
type Config struct {
	Database   Database   `yaml:"database" json:"database"`
	Extraction Extraction `yaml:"extraction" json:"extraction"`
	Output     Output     `yaml:"output" json:"output"`

	// Logging
	LogFile string `yaml:"log_file" json:"log_file"`

	// Observability
	PushGateway  string `yaml:"push_gateway" json:"push_gateway"`
	OTELEndpoint string `yaml:"otel_endpoint" json:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure" json:"otel_insecure"`
	OTELService  string `yaml:"otel_service" json:"otel_service"`
}

// DefaultIOCTypes is the MISP attribute type set extracted when the
// configuration does not name its own.
var DefaultIOCTypes = []string{
	"ip-src", "ip-dst", "domain", "hostname", "url",
	"md5", "sha1", "sha256", "filename", "email-src",
	"email-dst", "mutex", "regkey", "snort", "yara",
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "misp"
	}
	if c.Extraction.HoursLookback == 0 {
		c.Extraction.HoursLookback = 24
	}
	if len(c.Extraction.IOCTypes) == 0 {
		c.Extraction.IOCTypes = append([]string{}, DefaultIOCTypes...)
	}
	if c.Output.JSONFile == "" {
		c.Output.JSONFile = "misp_recent_iocs.json"
	}
	if c.Output.CacheDB == "" {
		c.Output.CacheDB = "ioc_cache.db"
	}
	if c.Output.BackupDB == "" {
		c.Output.BackupDB = "ioc_cache_yesterday.db"
	}
	if c.LogFile == "" {
		c.LogFile = "mispextract.log"
	}
	if c.OTELService == "" {
		c.OTELService = "mispextract"
	}
}

// Default returns the fallback configuration used when no config file can
// be loaded. The credentials are placeholders, so a run on the fallback
// fails at the connect step rather than at config time.
func Default() *Config {
	c := &Config{}
	c.Database.User = "USERNAME"
	c.Database.Password = "PASSWORD"
	c.SetDefaults()
	return c
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be in 1..65535")
	}
	if c.Extraction.HoursLookback < 1 {
		return fmt.Errorf("hours_lookback must be at least 1")
	}
	if len(c.Extraction.IOCTypes) == 0 {
		return fmt.Errorf("at least one ioc_type is required")
	}
	if c.Output.JSONFile == "" || c.Output.CacheDB == "" || c.Output.BackupDB == "" {
		return fmt.Errorf("output paths json_file, cache_db and backup_db are required")
	}
	if c.Output.CacheDB == c.Output.BackupDB {
		return fmt.Errorf("cache_db and backup_db must be distinct paths")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// MergeWithFlags merges command-line flags with file configuration
// Command-line flags take precedence over file configuration
func (c *Config) MergeWithFlags(flags map[string]interface{}) {
	if v, ok := flags["hours_lookback"].(int); ok && v > 0 {
		c.Extraction.HoursLookback = v
	}
	if v, ok := flags["json_file"].(string); ok && v != "" {
		c.Output.JSONFile = v
	}
	if v, ok := flags["cache_db"].(string); ok && v != "" {
		c.Output.CacheDB = v
	}
	if v, ok := flags["backup_db"].(string); ok && v != "" {
		c.Output.BackupDB = v
	}
	if v, ok := flags["log_file"].(string); ok && v != "" {
		c.LogFile = v
	}
	if v, ok := flags["push_gateway"].(string); ok && v != "" {
		c.PushGateway = v
	}
	if v, ok := flags["otel_endpoint"].(string); ok && v != "" {
		c.OTELEndpoint = v
	}
	if v, ok := flags["otel_insecure"].(bool); ok {
		c.OTELInsecure = v
	}
	if v, ok := flags["otel_service"].(string); ok && v != "" {
		c.OTELService = v
	}
}

// LoadFromEnv loads database credentials from environment variables so they
// can be kept out of the config file (a .env file is honored by main).
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("MISP_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("MISP_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("MISP_DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("MISP_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MISP_DB_NAME"); v != "" {
		c.Database.Database = v
	}
}
