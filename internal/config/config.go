package config

import (
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidConfiguration is returned by Validate when one or more settings
// are out of range.
var ErrInvalidConfiguration = eris.New("invalid configuration")

// Config holds the full application configuration.
type Config struct {
	Link    LinkConfig    `yaml:"link" mapstructure:"link"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// LinkConfig configures one interlinking run.
type LinkConfig struct {
	Budget          int    `yaml:"budget" mapstructure:"budget"`
	QualifyingPairs int    `yaml:"qualifying_pairs" mapstructure:"qualifying_pairs"`
	Delimiter       string `yaml:"delimiter" mapstructure:"delimiter"`
	Header          bool   `yaml:"header" mapstructure:"header"`
	SourcePath      string `yaml:"source_path" mapstructure:"source_path"`
	TargetPath      string `yaml:"target_path" mapstructure:"target_path"`
	WeightingScheme string `yaml:"weighting_scheme" mapstructure:"weighting_scheme"`
	Workers         int    `yaml:"workers" mapstructure:"workers"`
	// VerifyLimit stops verification after this many pairs. 0 verifies every
	// retained pair.
	VerifyLimit int `yaml:"verify_limit" mapstructure:"verify_limit"`
}

// DelimiterRune returns the configured delimiter, translating the "\t"
// escape. Validate guarantees a single character.
func (l LinkConfig) DelimiterRune() rune {
	d := l.Delimiter
	if d == `\t` || d == "tab" {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(d)
	return r
}

// StoreConfig configures where verified links are persisted.
type StoreConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	ConnectAttempts int    `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// MetricsConfig configures metric export. An empty Textfile disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// ReportConfig configures the run report.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env values only fill variables not already set.
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("interlink")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTERLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("link.budget", 10000)
	v.SetDefault("link.qualifying_pairs", 0)
	v.SetDefault("link.delimiter", `\t`)
	v.SetDefault("link.header", false)
	v.SetDefault("link.source_path", "")
	v.SetDefault("link.target_path", "")
	v.SetDefault("link.weighting_scheme", "MBR")
	v.SetDefault("link.workers", 1)
	v.SetDefault("link.verify_limit", 0)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.connect_attempts", 3)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("report.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var (
	weightingSchemes = []string{"CF", "JS_APPROX", "MBR", "NONE"}
	storeDrivers     = []string{"none", "sqlite", "postgres"}
	reportFormats    = []string{"text", "json", "yaml"}
)

// Validate checks the settings a run depends on. Every problem is reported,
// wrapped in ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var problems []string

	if c.Link.Budget <= 0 {
		problems = append(problems, "link.budget must be > 0")
	}
	if c.Link.QualifyingPairs < 0 {
		problems = append(problems, "link.qualifying_pairs must be >= 0")
	}
	if d := c.Link.Delimiter; d != `\t` && d != "tab" && utf8.RuneCountInString(d) != 1 {
		problems = append(problems, "link.delimiter must be a single character")
	} else if !validDelimiter(c.Link.DelimiterRune()) {
		problems = append(problems, `link.delimiter must not be a quote, carriage return or newline`)
	}
	if c.Link.SourcePath == "" {
		problems = append(problems, "link.source_path is required")
	}
	if c.Link.TargetPath == "" {
		problems = append(problems, "link.target_path is required")
	}
	if !oneOf(strings.ToUpper(c.Link.WeightingScheme), weightingSchemes) {
		problems = append(problems, "link.weighting_scheme must be one of "+strings.Join(weightingSchemes, ", "))
	}
	if c.Link.Workers < 1 || c.Link.Workers > 64 {
		problems = append(problems, "link.workers must be between 1 and 64")
	}
	if c.Link.VerifyLimit < 0 {
		problems = append(problems, "link.verify_limit must be >= 0")
	}
	if !oneOf(c.Store.Driver, storeDrivers) {
		problems = append(problems, "store.driver must be one of "+strings.Join(storeDrivers, ", "))
	}
	if (c.Store.Driver == "sqlite" || c.Store.Driver == "postgres") && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for driver "+c.Store.Driver)
	}
	if c.Store.ConnectAttempts < 0 {
		problems = append(problems, "store.connect_attempts must be >= 0")
	}
	if !oneOf(c.Report.Format, reportFormats) {
		problems = append(problems, "report.format must be one of "+strings.Join(reportFormats, ", "))
	}

	if len(problems) > 0 {
		return eris.Wrap(ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// validDelimiter mirrors the field separators encoding/csv accepts.
func validDelimiter(r rune) bool {
	return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
