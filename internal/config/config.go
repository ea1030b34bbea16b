// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Fit     FitConfig     `yaml:"fit" mapstructure:"fit"`
	Predict PredictConfig `yaml:"predict" mapstructure:"predict"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig points at the default input files.
type DataConfig struct {
	Observations string `yaml:"observations" mapstructure:"observations"`
	Regions      string `yaml:"regions" mapstructure:"regions"`
	RegionID     string `yaml:"region_id" mapstructure:"region_id"`
	XField       string `yaml:"x_field" mapstructure:"x_field"`
	YField       string `yaml:"y_field" mapstructure:"y_field"`
	SRID         int    `yaml:"srid" mapstructure:"srid"`
}

// FitConfig holds default model-building parameters.
type FitConfig struct {
	Buffer    float64  `yaml:"buffer" mapstructure:"buffer"`
	MinN      int      `yaml:"min_n" mapstructure:"min_n"`
	Workers   int      `yaml:"workers" mapstructure:"workers"`
	Response  string   `yaml:"response" mapstructure:"response"`
	Features  []string `yaml:"features" mapstructure:"features"`
	Intercept bool     `yaml:"intercept" mapstructure:"intercept"`
}

// PredictConfig holds default prediction parameters.
type PredictConfig struct {
	Smooth  float64 `yaml:"smooth" mapstructure:"smooth"`
	MaxDist float64 `yaml:"max_dist" mapstructure:"max_dist"`
	Workers int     `yaml:"workers" mapstructure:"workers"`
}

// StoreConfig configures the local run ledger and distance cache.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the prediction server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("MOSAIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.x_field", "x")
	v.SetDefault("data.y_field", "y")
	v.SetDefault("data.srid", 4326)
	v.SetDefault("fit.min_n", 1)
	v.SetDefault("fit.intercept", true)
	v.SetDefault("predict.smooth", 0)
	v.SetDefault("store.path", "mosaic.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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
