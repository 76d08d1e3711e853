package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models postline.yml.
type Config struct {
	Agency struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"agency"`
	Defaults struct {
		Currency string `yaml:"currency"`
	} `yaml:"defaults"`
	Catalog struct {
		Countries          []string `yaml:"countries"`
		AnnouncementTypes  []string `yaml:"announcement_types"`
		ExpenseTypes       []string `yaml:"expense_types"`
		InterviewDocuments []string `yaml:"interview_documents"`
	} `yaml:"catalog"`
	Cutout struct {
		MaxSizeBytes int64    `yaml:"max_size_bytes"`
		MimeTypes    []string `yaml:"mime_types"`
	} `yaml:"cutout"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig registers an external listener, typically a job board that
// mirrors published postings. Events filters by event type; empty means all.
type WebhookConfig struct {
	URL     string   `yaml:"url"`
	Secret  string   `yaml:"secret,omitempty"`
	Events  []string `yaml:"events,omitempty"`
	Enabled *bool    `yaml:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run pl init or edit the workspace", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Agency.ID == "" {
		return fmt.Errorf("config.agency.id is required")
	}
	if c.Defaults.Currency == "" {
		return fmt.Errorf("config.defaults.currency is required")
	}
	if c.Cutout.MaxSizeBytes <= 0 {
		return fmt.Errorf("config.cutout.max_size_bytes must be positive")
	}
	if len(c.Cutout.MimeTypes) == 0 {
		return fmt.Errorf("config.cutout.mime_types is required")
	}
	for _, m := range c.Cutout.MimeTypes {
		if m == "" {
			return fmt.Errorf("config.cutout.mime_types contains an empty entry")
		}
	}
	for _, country := range c.Catalog.Countries {
		if country == "" {
			return fmt.Errorf("config.catalog.countries contains an empty entry")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "postline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(agencyID string) string {
	return fmt.Sprintf(defaultTemplate, agencyID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for an agency.
func Default(agencyID string) *Config {
	var cfg Config
	cfg.Agency.ID = agencyID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, agencyID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `agency:
  id: %s
  name: ""

defaults:
  currency: AED

catalog:
  countries:
    - UAE
    - Qatar
    - Saudi Arabia
    - Kuwait
    - Bahrain
    - Oman
    - Malaysia
    - Japan
    - South Korea
    - Romania
    - Poland
    - Croatia

  announcement_types:
    - newspaper
    - website
    - social_media
    - notice_board

  expense_types:
    - visa
    - air_ticket
    - medical
    - insurance
    - orientation
    - welfare_fund
    - service_charge
    - other

  interview_documents:
    - passport
    - citizenship
    - cv
    - experience_letter
    - training_certificate
    - medical_report

cutout:
  max_size_bytes: 10485760
  mime_types:
    - image/jpeg
    - image/png
`
