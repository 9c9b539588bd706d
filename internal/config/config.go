package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Vision VisionConfig
	Brain  BrainConfig
	Store  StoreConfig
	App    AppConfig
}

type ServerConfig struct {
	Host string
	Port string
}

// VisionConfig points at the external object-detection service. An empty
// endpoint leaves the detector unconfigured and /analyze answers 503.
type VisionConfig struct {
	Endpoint string
	APIKey   string
}

// BrainConfig points at the external clinical reasoning engine.
type BrainConfig struct {
	Endpoint string
	APIKey   string
}

// StoreConfig describes the remote content store used for case archival and
// semantic search. Endpoint is the single enabling variable: when empty the
// store is disabled and the service runs without archival or search.
type StoreConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	Region          string
	SearchURL       string
}

func (c StoreConfig) Enabled() bool {
	return c.Endpoint != ""
}

type AppConfig struct {
	StagingDir     string
	MaxUploadSize  int64
	DemoMode       bool
	ArchiveWorkers int
	LogLevel       string
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("VISION_ENDPOINT", "")
	viper.SetDefault("VISION_API_KEY", "")
	viper.SetDefault("BRAIN_ENDPOINT", "")
	viper.SetDefault("BRAIN_API_KEY", "")
	viper.SetDefault("STORE_ENDPOINT", "")
	viper.SetDefault("STORE_ACCESS_KEY_ID", "")
	viper.SetDefault("STORE_SECRET_ACCESS_KEY", "")
	viper.SetDefault("STORE_USE_SSL", false)
	viper.SetDefault("STORE_BUCKET", "microsmart-cases")
	viper.SetDefault("STORE_REGION", "us-east-1")
	viper.SetDefault("STORE_SEARCH_URL", "")
	viper.SetDefault("APP_STAGING_DIR", "./staging")
	viper.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	viper.SetDefault("APP_DEMO_MODE", false)
	viper.SetDefault("APP_ARCHIVE_WORKERS", 2)
	viper.SetDefault("APP_LOG_LEVEL", "info")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		Vision: VisionConfig{
			Endpoint: viper.GetString("VISION_ENDPOINT"),
			APIKey:   viper.GetString("VISION_API_KEY"),
		},
		Brain: BrainConfig{
			Endpoint: viper.GetString("BRAIN_ENDPOINT"),
			APIKey:   viper.GetString("BRAIN_API_KEY"),
		},
		Store: StoreConfig{
			Endpoint:        viper.GetString("STORE_ENDPOINT"),
			AccessKeyID:     viper.GetString("STORE_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("STORE_SECRET_ACCESS_KEY"),
			UseSSL:          viper.GetBool("STORE_USE_SSL"),
			Bucket:          viper.GetString("STORE_BUCKET"),
			Region:          viper.GetString("STORE_REGION"),
			SearchURL:       viper.GetString("STORE_SEARCH_URL"),
		},
		App: AppConfig{
			StagingDir:     viper.GetString("APP_STAGING_DIR"),
			MaxUploadSize:  viper.GetInt64("APP_MAX_UPLOAD_SIZE"),
			DemoMode:       viper.GetBool("APP_DEMO_MODE"),
			ArchiveWorkers: viper.GetInt("APP_ARCHIVE_WORKERS"),
			LogLevel:       viper.GetString("APP_LOG_LEVEL"),
		},
	}

	if cfg.App.ArchiveWorkers < 1 {
		cfg.App.ArchiveWorkers = 1
	}

	if err := os.MkdirAll(cfg.App.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", cfg.App.StagingDir, err)
	}

	return cfg, nil
}
