package config

import (
	"encoding/json"
	"os"

	"hubrelay/internal/constants"
	"hubrelay/internal/models"
)

var (
	ErrMissingBotToken  = models.ConfigError{Message: "missing bot token"}
	ErrMissingDBPath    = models.ConfigError{Message: "missing database path"}
	ErrMissingRedisAddr = models.ConfigError{Message: "missing redis address"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Bot.Token == "" {
		return ErrMissingBotToken
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Redis.Addr == "" {
		return ErrMissingRedisAddr
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RetentionHours <= 0 {
		c.RetentionHours = constants.DefaultRetentionHours
	}
	if c.SweepSpec == "" {
		c.SweepSpec = constants.DefaultSweepSpec
	}
	if c.Classifier.Threshold <= 0 {
		c.Classifier.Threshold = constants.DefaultNSFWThreshold
	}
	if c.Classifier.TimeoutSec <= 0 {
		c.Classifier.TimeoutSec = constants.DefaultClassifierTimeoutSec
	}
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	// The bot token should come from the environment, not the config file.
	if token := os.Getenv("HUBRELAY_BOT_TOKEN"); token != "" {
		c.Bot.Token = token
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if url := os.Getenv("CLASSIFIER_URL"); url != "" {
		c.Classifier.BaseURL = url
	}
}
