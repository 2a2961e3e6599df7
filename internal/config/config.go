// ABOUTME: Configuration loading and parsing for shelf-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults advertised by the MCP endpoint when the config leaves them empty.
const (
	DefaultServerName      = "anx-calibre-manager"
	DefaultServerVersion   = "0.1.0"
	DefaultProtocolVersion = "2024-11-05"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultCalibreTimeout  = 30 * time.Second
	DefaultSMTPPort        = 587
)

// Config represents the complete shelf-gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	MCP        MCPConfig        `yaml:"mcp" toml:"mcp"`
	Calibre    CalibreConfig    `yaml:"calibre" toml:"calibre"`
	Anx        AnxConfig        `yaml:"anx" toml:"anx"`
	SMTP       SMTPConfig       `yaml:"smtp" toml:"smtp"`
	Conversion ConversionConfig `yaml:"conversion" toml:"conversion"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MCPConfig controls what the MCP endpoint advertises during initialize.
type MCPConfig struct {
	ServerName      string `yaml:"server_name" toml:"server_name"`
	ServerVersion   string `yaml:"server_version" toml:"server_version"`
	ProtocolVersion string `yaml:"protocol_version" toml:"protocol_version"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// CalibreConfig points at a Calibre content server.
type CalibreConfig struct {
	URL       string        `yaml:"url" toml:"url"`
	Username  string        `yaml:"username" toml:"username"`
	Password  string        `yaml:"password" toml:"password"`
	LibraryID string        `yaml:"library_id" toml:"library_id"`
	Timeout   time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// AnxConfig locates the per-user Anx reader libraries.
type AnxConfig struct {
	// DataDir holds one directory per username, each with data/database7.db and data/file/.
	DataDir string `yaml:"data_dir" toml:"data_dir"`
}

// SMTPConfig is used for Send-to-Kindle delivery.
type SMTPConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	From     string `yaml:"from" toml:"from"`
}

// ConversionConfig holds the optional Calibre ebook-convert binary.
type ConversionConfig struct {
	EbookConvertPath string `yaml:"ebook_convert_path" toml:"ebook_convert_path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.MCP.ServerName == "" {
		c.MCP.ServerName = DefaultServerName
	}
	if c.MCP.ServerVersion == "" {
		c.MCP.ServerVersion = DefaultServerVersion
	}
	if c.MCP.ProtocolVersion == "" {
		c.MCP.ProtocolVersion = DefaultProtocolVersion
	}
	if c.MCP.MaxBodyBytes <= 0 {
		c.MCP.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Calibre.Timeout == 0 {
		c.Calibre.Timeout = DefaultCalibreTimeout
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = DefaultSMTPPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Anx.DataDir == "" {
		return fmt.Errorf("anx.data_dir is required")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required when smtp.host is set")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Calibre.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Calibre.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing calibre.timeout %q: %w", cfg.Calibre.TimeoutRaw, err)
		}
		cfg.Calibre.Timeout = d
	}
	return nil
}
