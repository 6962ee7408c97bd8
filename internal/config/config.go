package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Environment string `yaml:"environment" env:"SENTRY_ENVIRONMENT" env-default:"development"`
	SentryDSN   string `yaml:"sentry_dsn" env:"SENTRY_DSN"`

	LogLevel string `yaml:"log_level" env:"DIFCHECK_LOG_LEVEL" env-default:"warn"`
	// DetectGCE switches logs to GCE structured logging when running there.
	DetectGCE bool `yaml:"detect_gce" env:"DIFCHECK_DETECT_GCE" env-default:"false"`

	// MaxFileSize is the largest text debug file read into memory.
	MaxFileSize int64 `yaml:"max_file_size" env:"DIFCHECK_MAX_FILE_SIZE" env-default:"1073741824"`
	// Workers bounds how many files are checked at the same time.
	Workers int `yaml:"workers" env:"DIFCHECK_WORKERS" env-default:"8"`
}

// Load reads the configuration from the environment, or from a YAML file
// when path is set. Environment variables override values from the file.
func Load(path string) (Config, error) {
	var c Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &c)
	} else {
		err = cleanenv.ReadEnv(&c)
	}
	if err != nil {
		return Config{}, err
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c, nil
}
