package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Report    ReportConfig    `yaml:"report" envconfig:"REPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	// FilePath defaults to LogFileName in the processed directory
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ReportConfig controls how input is read and which report sheets are produced
type ReportConfig struct {
	Delimiter   string `yaml:"delimiter" envconfig:"DELIMITER" validate:"len=1"`
	IncludeSEM  bool   `yaml:"include_sem" envconfig:"INCLUDE_SEM"`
	LabelPolicy string `yaml:"label_policy" envconfig:"LABEL_POLICY" validate:"oneof=strict skip"`
	ExportCSV   bool   `yaml:"export_csv" envconfig:"EXPORT_CSV"`
	Workers     int    `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	TraceExporter   string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	MetricsTextfile string `yaml:"metrics_textfile" envconfig:"METRICS_TEXTFILE"`
}

// Load builds the configuration from defaults, then the YAML file at configFile
// when it is non-empty, then PHENO_* environment variables, and validates the result.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags so unset variables leave file values alone
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	return validator.New().Struct(c)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: "console",
		},
		Report: ReportConfig{
			Delimiter:   DefaultDelimiter,
			IncludeSEM:  true,
			LabelPolicy: LabelPolicyStrict,
			Workers:     DefaultParseWorkers,
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
		},
	}
}
