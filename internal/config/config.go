// Package config loads service settings from configs/config.yml with
// TRIGGERS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TRIGGERS"

type Config struct {
	Port    string        `mapstructure:"port"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Health  HealthConfig  `mapstructure:"health"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicRoot   string `mapstructure:"topic_root"`
	QoS         byte   `mapstructure:"qos"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`
}

type RedisConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	PushChannel string `mapstructure:"push_channel"`
	EmailQueue  string `mapstructure:"email_queue"`
	FeedLength  int64  `mapstructure:"feed_length"`
}

type EngineConfig struct {
	EvaluationTimeout time.Duration `mapstructure:"evaluation_timeout"`
	MaxInFlight       int64         `mapstructure:"max_in_flight"`
}

type HealthConfig struct {
	Schedule    string        `mapstructure:"schedule"`
	MaxTriggers int64         `mapstructure:"max_triggers"`
	Window      time.Duration `mapstructure:"window"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "triggers.db")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "mqtt://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_root", "NBtechv1")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.insecure_tls", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.push_channel", "triggers:push")
	v.SetDefault("redis.email_queue", "triggers:email")
	v.SetDefault("redis.feed_length", 50)

	v.SetDefault("engine.evaluation_timeout", "10s")
	v.SetDefault("engine.max_in_flight", 64)

	v.SetDefault("health.schedule", "@every 5m")
	v.SetDefault("health.max_triggers", 100)
	v.SetDefault("health.window", "1h")

	v.SetDefault("tracing.endpoint", "")
}

// Load reads the config file at path, or configs/config.yml when path is
// empty. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Engine.EvaluationTimeout < 0 {
		return errors.New("engine.evaluation_timeout must not be negative")
	}
	if c.Engine.MaxInFlight <= 0 {
		return errors.New("engine.max_in_flight must be positive")
	}
	if c.Health.Window <= 0 {
		return errors.New("health.window must be positive")
	}
	return nil
}
