package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "DRILLAGG"

// Config represents the complete application configuration
type Config struct {
	Aggregate AggregateConfig `yaml:"aggregate" envconfig:"AGGREGATE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
}

// AggregateConfig controls table extraction and output
type AggregateConfig struct {
	InputDir   string `yaml:"input_dir" envconfig:"INPUT_DIR"`
	OutputFile string `yaml:"output_file" envconfig:"OUTPUT_FILE"`
	// Format is "lines" for plain comma-joined lines or "csv" for quoted CSV
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=lines csv"`
	BOM    bool   `yaml:"bom" envconfig:"BOM"`

	DataStartID    string `yaml:"data_start_id" envconfig:"DATA_START_ID" validate:"required"`
	DataEndID      string `yaml:"data_end_id" envconfig:"DATA_END_ID" validate:"required"`
	RemarksStartID string `yaml:"remarks_start_id" envconfig:"REMARKS_START_ID" validate:"required"`
	RemarksMode    string `yaml:"remarks_mode" envconfig:"REMARKS_MODE" validate:"oneof=marker-only suppress-trailing"`

	ProvenanceField string `yaml:"provenance_field" envconfig:"PROVENANCE_FIELD" validate:"required"`
	// ProvenanceCell is relative to the used range unless
	// AbsoluteCoordinates is set.
	ProvenanceCell string `yaml:"provenance_cell" envconfig:"PROVENANCE_CELL" validate:"required"`

	// Sheet names the worksheet read from every workbook. Empty selects the
	// sheet named after the file stem. Workbooks without it are skipped
	// unless FirstSheetFallback is set.
	Sheet               string `yaml:"sheet" envconfig:"SHEET"`
	FirstSheetFallback  bool   `yaml:"first_sheet_fallback" envconfig:"FIRST_SHEET_FALLBACK"`
	AbsoluteCoordinates bool   `yaml:"absolute_coordinates" envconfig:"ABSOLUTE_COORDINATES"`

	Strict        bool     `yaml:"strict" envconfig:"STRICT"`
	Workers       int      `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
	Order         string   `yaml:"order" envconfig:"ORDER" validate:"oneof=name modtime"`
	Extensions    []string `yaml:"extensions" envconfig:"EXTENSIONS" validate:"min=1,dive,startswith=."`
	VerifyContent bool     `yaml:"verify_content" envconfig:"VERIFY_CONTENT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=0,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	// DataRoot, when set, confines input directories and output files
	// requested over HTTP, symlinks included. Empty leaves paths
	// unrestricted.
	DataRoot  string          `yaml:"data_root" envconfig:"DATA_ROOT"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// TelemetryConfig selects OpenTelemetry exporters
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=none prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// DatabaseConfig configures the optional PostgreSQL sink
type DatabaseConfig struct {
	URL      string `yaml:"url" envconfig:"URL"`
	Table    string `yaml:"table" envconfig:"TABLE"`
	MaxConns int    `yaml:"max_conns" envconfig:"MAX_CONNS" validate:"min=1"`
}

// Enabled reports whether records should also be loaded into PostgreSQL
func (d DatabaseConfig) Enabled() bool {
	return d.URL != "" && d.Table != ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Aggregate: AggregateConfig{
			Format:          "lines",
			DataStartID:     "Hole Number",
			DataEndID:       "Sub-Totals",
			RemarksStartID:  "Remarks",
			RemarksMode:     "marker-only",
			ProvenanceField: "date",
			ProvenanceCell:  "A2",
			Workers:         1,
			Order:           "name",
			Extensions:      []string{".xlsx", ".xlsm"},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/drillagg.log",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		Database: DatabaseConfig{
			MaxConns: 4,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in increasing precedence. An empty path falls back to
// $DRILLAGG_CONFIG and then to well-known locations.
func Load(path string) (*Config, error) {
	// A missing .env is normal; only the variables it defines are loaded.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// mergeFile overlays the keys present in a YAML file
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if _, _, err := c.Aggregate.ProvenanceCoordinates(); err != nil {
		return err
	}

	if strings.EqualFold(c.Logging.Output, "file") || strings.EqualFold(c.Logging.Output, "both") {
		if c.Logging.FilePath == "" {
			return fmt.Errorf("logging output %q requires a file path", c.Logging.Output)
		}
	}

	if (c.Database.URL == "") != (c.Database.Table == "") {
		return fmt.Errorf("database url and table must be set together")
	}

	return nil
}

// ProvenanceCoordinates converts ProvenanceCell ("A2") into zero-based
// row and column indices.
func (a AggregateConfig) ProvenanceCoordinates() (row, col int, err error) {
	c, r, err := excelize.CellNameToCoordinates(a.ProvenanceCell)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid provenance cell %q: %w", a.ProvenanceCell, err)
	}
	return r - 1, c - 1, nil
}

// Addr is the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		return env
	}

	locations := []string{
		"drillagg.yaml",
		filepath.Join("configs", "drillagg.yaml"),
	}
	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "drillagg", "config.yaml"))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}
