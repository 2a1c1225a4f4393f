package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

// Environment variables that override file settings
const (
	EnvPort      = "GATEWAY_PORT"
	EnvLogLevel  = "GATEWAY_LOG_LEVEL"
	EnvLogPreset = "GATEWAY_LOG_PRESET"
)

// Settings is the complete gateway server configuration
type Settings struct {
	Server  ServerSettings  `yaml:"server" toml:"server"`
	Admin   AdminSettings   `yaml:"admin" toml:"admin"`
	Source  SourceSettings  `yaml:"source" toml:"source"`
	Logging *logging.Config `yaml:"logging" toml:"logging"`
}

// ServerSettings configures the PerformImport listener. Timeouts are in
// seconds; a zero write timeout leaves long imports unbounded.
type ServerSettings struct {
	Host            string `yaml:"host" toml:"host"`
	Port            int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     int    `yaml:"readTimeout" toml:"readTimeout" validate:"gte=0"`
	WriteTimeout    int    `yaml:"writeTimeout" toml:"writeTimeout" validate:"gte=0"`
	ShutdownTimeout int    `yaml:"shutdownTimeout" toml:"shutdownTimeout" validate:"gte=0"`
	H2C             bool   `yaml:"h2c" toml:"h2c"`
}

// AdminSettings configures the administrative HTTP endpoints
type AdminSettings struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Host    string `yaml:"host" toml:"host"`
	Port    int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
}

// SourceSettings selects the backend holding the items the gateway replays
type SourceSettings struct {
	Type     string `yaml:"type" toml:"type" validate:"omitempty,oneof=memory sqlite"`
	Path     string `yaml:"path" toml:"path" validate:"required_if=Type sqlite"`
	WALMode  bool   `yaml:"walMode" toml:"walMode"`
	SeedPath string `yaml:"seedPath" toml:"seedPath"`
}

// Address returns host:port for the listener
func (s ServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Address returns host:port for the admin listener
func (a AdminSettings) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Default returns the settings used when no file is given
func Default() *Settings {
	return &Settings{
		Server: ServerSettings{
			Port:            80,
			ReadTimeout:     30,
			ShutdownTimeout: 10,
			H2C:             true,
		},
		Admin: AdminSettings{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Source: SourceSettings{
			Type: "memory",
		},
		Logging: logging.DefaultConfig(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate normalises and validates the configuration settings
func (s *Settings) Validate() error {
	s.Source.Type = strings.ToLower(strings.TrimSpace(s.Source.Type))
	if s.Source.Type == "" {
		s.Source.Type = "memory"
	}
	s.Source.Path = strings.TrimSpace(s.Source.Path)

	if err := validate.Struct(s); err != nil {
		return describe(err)
	}

	if s.Logging == nil {
		s.Logging = logging.DefaultConfig()
	}
	s.Logging.Level = logging.LogLevel(strings.ToLower(string(s.Logging.Level)))
	if err := s.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if s.Admin.Enabled && s.Admin.Port != 0 && s.Admin.Port == s.Server.Port && s.Admin.Host == s.Server.Host {
		return fmt.Errorf("admin.port must differ from server.port, both are %d", s.Server.Port)
	}

	return nil
}

// describe turns validator failures into one readable error
func describe(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := strings.TrimPrefix(fe.Namespace(), "Settings.")
		switch fe.Tag() {
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s], got '%v'", field, fe.Param(), fe.Value()))
		case "required_if":
			messages = append(messages, fmt.Sprintf("%s cannot be empty when %s", field, fe.Param()))
		case "gte", "lte":
			messages = append(messages, fmt.Sprintf("%s must satisfy %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

// Load reads settings from a YAML or TOML file, chosen by extension, on top
// of Default, applies environment overrides and validates the result
func Load(path string) (*Settings, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(bytes), settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(bytes, settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// Validate the configuration after unmarshaling
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// ApplyEnv overrides settings from the environment through lookup. A log
// preset replaces the whole logging section; a log level is applied after it.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if value, ok := lookup(EnvPort); ok && value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		s.Server.Port = port
	}
	if value, ok := lookup(EnvLogPreset); ok && value != "" {
		switch strings.ToLower(value) {
		case "development":
			s.Logging = logging.DevelopmentConfig()
		case "production":
			s.Logging = logging.ProductionConfig()
		default:
			return fmt.Errorf("%s: unknown preset %q (want development or production)", EnvLogPreset, value)
		}
	}
	if value, ok := lookup(EnvLogLevel); ok && value != "" {
		if s.Logging == nil {
			s.Logging = logging.DefaultConfig()
		}
		s.Logging.Level = logging.LogLevel(value)
	}
	return nil
}
