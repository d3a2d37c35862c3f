package study

import (
	"encoding/base64"
	"os"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// Config is the immutable process configuration, loaded once at startup and
// passed explicitly to the components that need it.
type Config struct {
	LogLevel       string        `yaml:"log_level"`
	Development    bool          `yaml:"development"`
	StudyPublicURL string        `yaml:"study_public_url"`
	Auth           AuthConfig    `yaml:"auth"`
	Email          EmailConfig   `yaml:"email"`
	Study          *StudyConfig  `yaml:"study"`
	Sync           *SyncConfig   `yaml:"sync"`
	Server         ServerConfig  `yaml:"server"`
	Metrics        MetricsConfig `yaml:"metrics"`
}

type AuthConfig struct {
	SecretKeys []SecretKey `yaml:"secret_keys"`
}

// EmailConfig selects and configures a sender. Type is one of mock, smtp,
// or azure.
type EmailConfig struct {
	Type        string `yaml:"type"`
	FromAddress string `yaml:"from_address"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	UseTLS      bool   `yaml:"use_tls"`
	StartTLS    bool   `yaml:"start_tls"`
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
}

// StudyConfig holds the tabular-store credentials and table ids.
type StudyConfig struct {
	AirtableAPIKey              string `yaml:"airtable_api_key"`
	AirtableBaseID              string `yaml:"airtable_base_id"`
	ClassTableID                string `yaml:"airtable_class_table_id"`
	InstructorTableID           string `yaml:"airtable_instructor_table_id"`
	AdminTableID                string `yaml:"airtable_admin_table_id"`
	PreAssessmentTableID        string `yaml:"airtable_preassessment_submission_table_id"`
	PostAssessmentTableID       string `yaml:"airtable_postassessment_submission_table_id"`
	UserClassAssociationTableID string `yaml:"airtable_user_class_association_table_id"`
}

// SyncConfig drives the background jobs that mirror study records into the
// platform. The cookie authenticates the automation account.
type SyncConfig struct {
	PlatformURL    string `yaml:"platform_url"`
	PlatformCookie string `yaml:"platform_cookie"`
	Schedule       string `yaml:"schedule"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Auth),
	)
}

func (a AuthConfig) Validate() error {
	if len(a.SecretKeys) == 0 {
		return errors.New("auth.secret_keys must not be empty", errors.CategoryValidation)
	}
	for _, key := range a.SecretKeys {
		if key.Key == "" {
			return errors.New("auth.secret_keys entries require a key", errors.CategoryValidation)
		}
	}
	return nil
}

// StudyURL resolves a path against the configured public study URL.
func (c Config) StudyURL(path string) (string, error) {
	return NewLinks(nil, c.StudyPublicURL).StudyURL(path)
}

// LoadConfig reads configuration from the CONFIG environment variable
// (base64-encoded YAML) or, failing that, the file named by CONFIG_PATH
// (default config.yml). CONFIG wins when both are set.
func LoadConfig() (*Config, error) {
	raw, err := rawConfig()
	if err != nil {
		return nil, err
	}
	return ParseConfig(raw)
}

// ParseConfig decodes and validates a YAML configuration document.
func ParseConfig(raw []byte) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			MetricsPort: 9090,
		},
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to decode config")
	}

	for i := range cfg.Auth.SecretKeys {
		if cfg.Auth.SecretKeys[i].Algorithm == "" {
			cfg.Auth.SecretKeys[i].Algorithm = "HS256"
		}
	}

	if cfg.Sync != nil && cfg.Sync.Schedule == "" {
		cfg.Sync.Schedule = "@every 10m"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func rawConfig() ([]byte, error) {
	if direct := os.Getenv("CONFIG"); direct != "" {
		raw, err := base64.StdEncoding.DecodeString(direct)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "CONFIG is not valid base64")
		}
		return raw, nil
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yml"
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to read config file")
	}
	return raw, nil
}
