package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	AWSAccessKey   string
	AWSSecretKey   string
	APIKey         string
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		AWSAccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		APIKey:         getEnv("API_KEY", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// Profile configures how streams sent under one profile name are stored.
type Profile struct {
	PathTemplate   string   `yaml:"path_template"`
	AllowedMimes   []string `yaml:"allowed_mimes"`
	SizeMaxBytes   int64    `yaml:"size_max_bytes"` // 0 means unlimited
	PartSizeMB     int      `yaml:"part_size_mb"`
	MaxPartSizeMB  int      `yaml:"max_part_size_mb"`
	Concurrency    int      `yaml:"concurrency"`
	EnableSharding bool     `yaml:"enable_sharding"`
	StorageClass   string   `yaml:"storage_class"`
}

type StreamConfig struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadStreamConfig reads the profile file named by STREAM_CONFIG_PATH. A
// missing file yields a config holding only the default profile.
func LoadStreamConfig() (*StreamConfig, error) {
	configPath := getEnv("STREAM_CONFIG_PATH", "stream-config.yaml")

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return &StreamConfig{Profiles: map[string]Profile{"default": *DefaultProfile()}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream config: %w", err)
	}

	return ParseStreamConfig(data)
}

func ParseStreamConfig(data []byte) (*StreamConfig, error) {
	var config StreamConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse stream config: %w", err)
	}

	for name, profile := range config.Profiles {
		if profile.PathTemplate == "" {
			return nil, fmt.Errorf("profile %q: path_template is required", name)
		}
		if profile.PartSizeMB < 0 || profile.MaxPartSizeMB < 0 || profile.Concurrency < 0 {
			return nil, fmt.Errorf("profile %q: sizes and concurrency must not be negative", name)
		}
	}

	return &config, nil
}

// GetProfile returns the named profile, then the "default" profile. It
// returns nil when neither exists.
func (sc *StreamConfig) GetProfile(name string) *Profile {
	if profile, exists := sc.Profiles[name]; exists {
		return &profile
	}

	if defaultProfile, exists := sc.Profiles["default"]; exists {
		return &defaultProfile
	}

	return nil
}

func DefaultProfile() *Profile {
	return &Profile{
		PathTemplate: "streams/{key_base}",
		PartSizeMB:   5,
		Concurrency:  4,
	}
}

func (p *Profile) PartSizeBytes() int {
	return p.PartSizeMB << 20
}

func (p *Profile) MaxPartSizeBytes() int {
	return p.MaxPartSizeMB << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
