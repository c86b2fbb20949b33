package models

// ConfigError indicates an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

type BotConfig struct {
	Token string `json:"token"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ClassifierConfig struct {
	BaseURL    string  `json:"baseUrl"`
	Threshold  float64 `json:"threshold"`
	TimeoutSec int     `json:"timeoutSec"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	UseStdout    bool    `json:"useStdout"`
	OTLPEndpoint string  `json:"otlpEndpoint"`
	SampleRate   float64 `json:"sampleRate"`
	Environment  string  `json:"environment"`
}

type Config struct {
	LogLevel       string           `json:"logLevel"`
	RetentionHours int              `json:"retentionHours"`
	SweepSpec      string           `json:"sweepSpec"`
	Bot            BotConfig        `json:"bot"`
	Database       DatabaseConfig   `json:"database"`
	Redis          RedisConfig      `json:"redis"`
	Classifier     ClassifierConfig `json:"classifier"`
	Server         ServerConfig     `json:"server"`
	Tracing        TracingConfig    `json:"tracing"`
}
