package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Crashes   CrashesConfig   `yaml:"crashes" mapstructure:"crashes"`
	Districts DistrictsConfig `yaml:"districts" mapstructure:"districts"`
	BikeInfra BikeInfraConfig `yaml:"bikeinfra" mapstructure:"bikeinfra"`
	Build     BuildConfig     `yaml:"build" mapstructure:"build"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CrashesConfig configures the crash overlay.
type CrashesConfig struct {
	CrashesPath string `yaml:"crashes_path" mapstructure:"crashes_path"`
	VictimsPath string `yaml:"victims_path" mapstructure:"victims_path"`
	OutputPath  string `yaml:"output_path" mapstructure:"output_path"`
	// KeepAgeTies keeps every victim sharing a case's minimum age instead of only the first.
	KeepAgeTies bool `yaml:"keep_age_ties" mapstructure:"keep_age_ties"`
}

// DistrictsConfig configures the council district overlays.
type DistrictsConfig struct {
	SourcePath        string  `yaml:"source_path" mapstructure:"source_path"`
	OutputPath        string  `yaml:"output_path" mapstructure:"output_path"`
	CentersOutputPath string  `yaml:"centers_output_path" mapstructure:"centers_output_path"`
	Tolerance         float64 `yaml:"tolerance" mapstructure:"tolerance"`
	SourceEPSG        int     `yaml:"source_epsg" mapstructure:"source_epsg"`
	TempDir           string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// BikeInfraConfig configures the bike infrastructure overlay.
type BikeInfraConfig struct {
	SourcePath string  `yaml:"source_path" mapstructure:"source_path"`
	OutputPath string  `yaml:"output_path" mapstructure:"output_path"`
	Tolerance  float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// BuildConfig configures `overlays build`.
type BuildConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OVERLAYS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("crashes.crashes_path", "raw_data/TIMS/Crashes.csv")
	v.SetDefault("crashes.victims_path", "raw_data/TIMS/Victims.csv")
	v.SetDefault("crashes.output_path", "static/overlays/crashes.geojson")
	v.SetDefault("crashes.keep_age_ties", false)
	v.SetDefault("districts.source_path", "raw_data/Council_Districts.zip")
	v.SetDefault("districts.output_path", "static/overlays/council_districts.geojson")
	v.SetDefault("districts.centers_output_path", "static/overlays/council_district_centers.geojson")
	v.SetDefault("districts.tolerance", 10.0)
	v.SetDefault("districts.source_epsg", 0)
	v.SetDefault("districts.temp_dir", "")
	v.SetDefault("bikeinfra.source_path", "static/overlays/current_bike_infrastructure_highres.geojson")
	v.SetDefault("bikeinfra.output_path", "static/overlays/current_bike_infrastructure.geojson")
	v.SetDefault("bikeinfra.tolerance", 5.0)
	v.SetDefault("build.concurrency", 1)
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

// Validate checks the settings a command needs. Mode is one of "crashes", "districts",
// "bikeinfra", or "build".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "crashes":
		errs = append(errs, c.validateCrashes()...)
	case "districts":
		errs = append(errs, c.validateDistricts()...)
	case "bikeinfra":
		errs = append(errs, c.validateBikeInfra()...)
	case "build":
		errs = append(errs, c.validateCrashes()...)
		errs = append(errs, c.validateDistricts()...)
		errs = append(errs, c.validateBikeInfra()...)
		if c.Build.Concurrency < 1 || c.Build.Concurrency > 3 {
			errs = append(errs, "build.concurrency must be between 1 and 3")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateCrashes() []string {
	var errs []string
	if c.Crashes.CrashesPath == "" {
		errs = append(errs, "crashes.crashes_path is required")
	}
	if c.Crashes.VictimsPath == "" {
		errs = append(errs, "crashes.victims_path is required")
	}
	if c.Crashes.OutputPath == "" {
		errs = append(errs, "crashes.output_path is required")
	}
	return errs
}

func (c *Config) validateDistricts() []string {
	var errs []string
	if c.Districts.SourcePath == "" {
		errs = append(errs, "districts.source_path is required")
	}
	if c.Districts.OutputPath == "" {
		errs = append(errs, "districts.output_path is required")
	}
	if c.Districts.CentersOutputPath == "" {
		errs = append(errs, "districts.centers_output_path is required")
	}
	if c.Districts.Tolerance < 0 {
		errs = append(errs, "districts.tolerance must be >= 0")
	}
	if c.Districts.SourceEPSG < 0 {
		errs = append(errs, "districts.source_epsg must be >= 0")
	}
	return errs
}

func (c *Config) validateBikeInfra() []string {
	var errs []string
	if c.BikeInfra.SourcePath == "" {
		errs = append(errs, "bikeinfra.source_path is required")
	}
	if c.BikeInfra.OutputPath == "" {
		errs = append(errs, "bikeinfra.output_path is required")
	}
	if c.BikeInfra.Tolerance < 0 {
		errs = append(errs, "bikeinfra.tolerance must be >= 0")
	}
	return errs
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
