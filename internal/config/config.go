package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type CameraConfig struct {
	SnapshotURL  string
	PollInterval time.Duration
	Timeout      time.Duration
}

type OCRConfig struct {
	BaseURL             string
	ConfidenceThreshold float64
	Timeout             time.Duration
}

type GeoConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// EnforcementConfig holds the decision thresholds of the violation pipeline.
type EnforcementConfig struct {
	SpeedLimit              int
	DefaultCountryCode      string
	RepeatOffenderThreshold int
}

type PipelineConfig struct {
	QueueSize int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Camera      CameraConfig
	OCR         OCRConfig
	Geo         GeoConfig
	Twilio      TwilioConfig
	Enforcement EnforcementConfig
	Pipeline    PipelineConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	v.SetDefault("OCR_CONFIDENCE_THRESHOLD", 0.5)
	v.SetDefault("REPEAT_OFFENDER_THRESHOLD", 2)

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Camera: CameraConfig{
			SnapshotURL:  v.GetString("CAMERA_SNAPSHOT_URL"),
			PollInterval: v.GetDuration("CAMERA_POLL_INTERVAL"),
			Timeout:      v.GetDuration("CAMERA_TIMEOUT"),
		},
		OCR: OCRConfig{
			BaseURL:             v.GetString("OCR_BASE_URL"),
			ConfidenceThreshold: v.GetFloat64("OCR_CONFIDENCE_THRESHOLD"),
			Timeout:             v.GetDuration("OCR_TIMEOUT"),
		},
		Geo: GeoConfig{
			Endpoint: v.GetString("GEO_ENDPOINT"),
			Timeout:  v.GetDuration("GEO_TIMEOUT"),
		},
		Twilio: TwilioConfig{
			AccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
			FromNumber: v.GetString("TWILIO_FROM_NUMBER"),
			BaseURL:    v.GetString("TWILIO_BASE_URL"),
		},
		Enforcement: EnforcementConfig{
			SpeedLimit:              v.GetInt("SPEED_LIMIT"),
			DefaultCountryCode:      v.GetString("DEFAULT_COUNTRY_CODE"),
			RepeatOffenderThreshold: v.GetInt("REPEAT_OFFENDER_THRESHOLD"),
		},
		Pipeline: PipelineConfig{
			QueueSize: v.GetInt("PIPELINE_QUEUE_SIZE"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Camera.PollInterval == 0 {
		cfg.Camera.PollInterval = 250 * time.Millisecond
	}
	if cfg.Camera.Timeout == 0 {
		cfg.Camera.Timeout = 5 * time.Second
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 10 * time.Second
	}
	if cfg.Geo.Endpoint == "" {
		cfg.Geo.Endpoint = "https://ipinfo.io/json"
	}
	if cfg.Geo.Timeout == 0 {
		cfg.Geo.Timeout = 5 * time.Second
	}
	if cfg.Twilio.BaseURL == "" {
		cfg.Twilio.BaseURL = "https://api.twilio.com"
	}
	if cfg.Enforcement.SpeedLimit == 0 {
		cfg.Enforcement.SpeedLimit = 50
	}
	if cfg.Enforcement.DefaultCountryCode == "" {
		cfg.Enforcement.DefaultCountryCode = "+91"
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 8
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.OCR.BaseURL == "" {
		return fmt.Errorf("OCR_BASE_URL is required")
	}
	// Confidence scores span [0, 1], so the threshold accepts the whole
	// closed interval. A threshold of 1 simply never matches a candidate.
	if cfg.OCR.ConfidenceThreshold < 0 || cfg.OCR.ConfidenceThreshold > 1 {
		return fmt.Errorf("OCR_CONFIDENCE_THRESHOLD must be in [0, 1]")
	}
	return nil
}
