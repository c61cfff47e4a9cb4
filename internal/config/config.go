package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	AWS         AWSConfig
	Instrument  InstrumentConfig
	Acquisition AcquisitionConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// AWSConfig holds AWS/S3 configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// InstrumentConfig selects and reaches the analyzer
type InstrumentConfig struct {
	Address  string
	Timeout  time.Duration
	Simulate bool
}

// AcquisitionConfig holds acquisition loop configuration
type AcquisitionConfig struct {
	SampleInterval time.Duration
	SettleDelay    time.Duration
	AnalyzerFile   string
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "dev")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ACCESS_KEY_ID", "")
	viper.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	viper.SetDefault("S3_BUCKET", "")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("INSTRUMENT_ADDRESS", "")
	viper.SetDefault("INSTRUMENT_TIMEOUT", "5s")
	viper.SetDefault("SIMULATE", false)
	viper.SetDefault("SAMPLE_INTERVAL", "500ms")
	viper.SetDefault("SETTLE_DELAY", "1s")
	viper.SetDefault("ANALYZER_CONFIG", "analyzer.yaml")

	env := viper.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	viper.SetConfigName(".env." + env)
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// The .env file is optional
	_ = viper.ReadInConfig()

	// Environment variables override .env file values
	viper.AutomaticEnv()

	for _, key := range []string{
		"DATABASE_URL", "PORT", "ENVIRONMENT", "ALLOWED_ORIGINS",
		"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "S3_BUCKET", "S3_ENDPOINT",
		"INSTRUMENT_ADDRESS", "INSTRUMENT_TIMEOUT", "SIMULATE",
		"SAMPLE_INTERVAL", "SETTLE_DELAY", "ANALYZER_CONFIG",
	} {
		_ = viper.BindEnv(key)
	}

	var config Config
	config.Database.URL = viper.GetString("DATABASE_URL")
	config.Server.Port = viper.GetString("PORT")
	config.Server.Env = viper.GetString("ENVIRONMENT")
	config.Server.AllowedOrigins = splitList(viper.GetString("ALLOWED_ORIGINS"))
	config.AWS.Region = viper.GetString("AWS_REGION")
	config.AWS.AccessKeyID = viper.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = viper.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = viper.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = viper.GetString("S3_ENDPOINT")
	config.Instrument.Address = viper.GetString("INSTRUMENT_ADDRESS")
	config.Instrument.Timeout = viper.GetDuration("INSTRUMENT_TIMEOUT")
	config.Instrument.Simulate = viper.GetBool("SIMULATE")
	config.Acquisition.SampleInterval = viper.GetDuration("SAMPLE_INTERVAL")
	config.Acquisition.SettleDelay = viper.GetDuration("SETTLE_DELAY")
	config.Acquisition.AnalyzerFile = viper.GetString("ANALYZER_CONFIG")

	if config.Acquisition.SampleInterval <= 0 {
		return nil, fmt.Errorf("SAMPLE_INTERVAL must be positive, got %s", viper.GetString("SAMPLE_INTERVAL"))
	}
	if !config.Instrument.Simulate && config.Instrument.Address == "" {
		return nil, fmt.Errorf("INSTRUMENT_ADDRESS is required unless SIMULATE is set")
	}

	log.Info().
		Str("environment", config.Server.Env).
		Bool("simulate", config.Instrument.Simulate).
		Dur("sample_interval", config.Acquisition.SampleInterval).
		Strs("allowed_origins", config.Server.AllowedOrigins).
		Msg("Configuration loaded")

	return &config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
