// Package config loads the application configuration from a YAML file
// with environment variable overrides. A missing file is not an error,
// every setting has a usable default.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type CatalogConfig struct {
	Dir         string `yaml:"dir"`
	DataURL     string `yaml:"dataURL" validate:"omitempty,url"`
	ChecksumURL string `yaml:"checksumURL" validate:"omitempty,url"`
}

type EtaConfig struct {
	TimeoutMS int `yaml:"timeoutMS" validate:"gte=0"`
}

// ExportConfig steers the GTFS-RT trip update export targets.
type ExportConfig struct {
	Target        string `yaml:"target"`
	JSONTarget    string `yaml:"jsonTarget"`
	HumanReadable bool   `yaml:"readablePB"`
}

type AppConfig struct {
	Language string        `yaml:"language" validate:"omitempty,oneof=en zh"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Eta      EtaConfig     `yaml:"eta"`
	Export   ExportConfig  `yaml:"export"`
}

// EtaTimeout returns the configured ETA query timeout, or zero when
// the engine default should apply.
func (c *AppConfig) EtaTimeout() time.Duration {
	return time.Duration(c.Eta.TimeoutMS) * time.Millisecond
}

var defaultPaths = []string{"config.yml", "config.yaml"}

// Load reads the configuration file at path, falling back to
// config.yml in the working directory and then to defaults when no
// file exists. Environment variables (optionally from a .env file)
// override the file.
func Load(path string) (*AppConfig, error) {
	// Load .env into the environment, ignore if missing
	_ = godotenv.Load()

	cfg := &AppConfig{}
	cfg.Language = "zh"
	cfg.Catalog.Dir = "hketa-data"

	paths := defaultPaths
	if path != "" {
		paths = []string{path}
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		break
	}

	applyEnv(cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if s := os.Getenv("HKETA_LANGUAGE"); s != "" {
		cfg.Language = s
	}
	if s := os.Getenv("HKETA_DATA_DIR"); s != "" {
		cfg.Catalog.Dir = s
	}
	if s := os.Getenv("HKETA_DATA_URL"); s != "" {
		cfg.Catalog.DataURL = s
	}
	if s := os.Getenv("HKETA_CHECKSUM_URL"); s != "" {
		cfg.Catalog.ChecksumURL = s
	}
	if s := os.Getenv("HKETA_ETA_TIMEOUT_MS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.Eta.TimeoutMS = n
		}
	}
}
