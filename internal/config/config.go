package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen     = ":5555"
	DefaultDeviceName = "xG27-Sensor"
	DefaultCompanyID  = 0xFFFF
	DefaultAsset      = "web/sensor.html"
)

type Config struct {
	Listen string       `yaml:"listen"`
	Asset  string       `yaml:"asset"`
	Source SourceConfig `yaml:"source"`
	Stream StreamConfig `yaml:"stream"`
	Log    LogConfig    `yaml:"log"`
}

type SourceConfig struct {
	Backend    string     `yaml:"backend"`
	Device     string     `yaml:"device"`
	CompanyID  uint16     `yaml:"companyId"`
	RetryDelay Duration   `yaml:"retryDelay"`
	MQTT       MQTTConfig `yaml:"mqtt"`
	NATS       NATSConfig `yaml:"nats"`
	ZMQ        ZMQConfig  `yaml:"zmq"`
	Sim        SimConfig  `yaml:"sim"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientId"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type ZMQConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type SimConfig struct {
	Interval Duration `yaml:"interval"`
	Seed     int64    `yaml:"seed"`
}

type StreamConfig struct {
	Heartbeat Duration `yaml:"heartbeat"`
	Buffer    int      `yaml:"buffer"`
	Overflow  string   `yaml:"overflow"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

func Default() *Config {
	return &Config{
		Listen: DefaultListen,
		Asset:  DefaultAsset,
		Source: SourceConfig{
			Backend:    "ble",
			Device:     DefaultDeviceName,
			CompanyID:  DefaultCompanyID,
			RetryDelay: Duration(5 * time.Second),
			MQTT: MQTTConfig{
				Broker:   "tcp://127.0.0.1:1883",
				Topic:    "xg27/advertisements",
				ClientID: "xg27station",
			},
			NATS: NATSConfig{
				URL:     "nats://127.0.0.1:4222",
				Subject: "xg27.advertisements",
			},
			ZMQ: ZMQConfig{
				Endpoint: "tcp://127.0.0.1:5556",
			},
			Sim: SimConfig{
				Interval: Duration(time.Second),
			},
		},
		Stream: StreamConfig{
			Heartbeat: Duration(15 * time.Second),
			Buffer:    64,
			Overflow:  "drop-oldest",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// when path is non-empty, then XG27_* environment overrides.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	config.Listen = envOrDefault("XG27_LISTEN", config.Listen)
	config.Asset = envOrDefault("XG27_ASSET", config.Asset)
	config.Source.Backend = envOrDefault("XG27_SOURCE_BACKEND", config.Source.Backend)
	config.Source.Device = envOrDefault("XG27_DEVICE", config.Source.Device)
	config.Source.RetryDelay = durationOrDefault("XG27_RETRY_DELAY", config.Source.RetryDelay)
	config.Source.MQTT.Broker = envOrDefault("XG27_MQTT_BROKER", config.Source.MQTT.Broker)
	config.Source.MQTT.Topic = envOrDefault("XG27_MQTT_TOPIC", config.Source.MQTT.Topic)
	config.Source.NATS.URL = envOrDefault("XG27_NATS_URL", config.Source.NATS.URL)
	config.Source.NATS.Subject = envOrDefault("XG27_NATS_SUBJECT", config.Source.NATS.Subject)
	config.Source.ZMQ.Endpoint = envOrDefault("XG27_ZMQ_ENDPOINT", config.Source.ZMQ.Endpoint)
	config.Stream.Heartbeat = durationOrDefault("XG27_HEARTBEAT", config.Stream.Heartbeat)
	config.Stream.Buffer = intOrDefault("XG27_STREAM_BUFFER", config.Stream.Buffer)
	config.Stream.Overflow = envOrDefault("XG27_STREAM_OVERFLOW", config.Stream.Overflow)
	config.Log.Level = envOrDefault("XG27_LOG_LEVEL", config.Log.Level)
	config.Log.File = envOrDefault("XG27_LOG_FILE", config.Log.File)
}

func (config *Config) Validate() error {
	if config.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	switch config.Source.Backend {
	case "ble", "mqtt", "nats", "zmq", "sim":
	default:
		return fmt.Errorf("unknown source backend: %s", config.Source.Backend)
	}
	switch config.Stream.Overflow {
	case "drop-oldest", "drop-newest":
	default:
		return fmt.Errorf("unknown overflow policy: %s", config.Stream.Overflow)
	}
	if config.Source.Device == "" {
		return fmt.Errorf("device name must not be empty")
	}
	if config.Source.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if config.Stream.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if config.Stream.Buffer < 1 {
		return fmt.Errorf("stream buffer must be at least 1")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intOrDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func durationOrDefault(key string, fallback Duration) Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return Duration(parsed)
}
