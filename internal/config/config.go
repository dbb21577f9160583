// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes the upstream news websocket connection. Username and
// password fall back to FEED_USERNAME / FEED_PASSWORD when the file
// leaves them blank, so credentials stay out of checked-in config.
type Feed struct {
	URL              string
	Username         string
	Password         string
	PingIntervalSecs int    `yaml:"ping_interval_secs"`
	PongTimeoutSecs  int    `yaml:"pong_timeout_secs"`
}

// Tagger groups tagging pipeline knobs.
type Tagger struct {
	UseHints bool `yaml:"use_hints"`
}

// Nats configures the optional cross-process fan-out bridge.
type Nats struct {
	Enabled bool
	URL     string
}

// Broadcast configures the UI websocket server.
type Broadcast struct {
	Enabled bool
	Addr    string
}

// Scorer configures the LLM backend agents classify stories with. APIKey
// falls back to OPENAI_API_KEY.
type Scorer struct {
	Endpoint  string
	APIKey    string `yaml:"api_key"`
	Model     string
	TimeoutMs int    `yaml:"timeout_ms"`
}

// MarketSpec describes one prediction market an agent subscribes for.
type MarketSpec struct {
	Address            string
	Question           string
	CurrentProbability float64  `yaml:"current_probability"`
	Tags               []string
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App          `yaml:"app"`
	Feed      Feed         `yaml:"feed"`
	Tagger    Tagger       `yaml:"tagger"`
	Nats      Nats         `yaml:"nats"`
	Broadcast Broadcast    `yaml:"broadcast"`
	Scorer    Scorer       `yaml:"scorer"`
	Markets   []MarketSpec `yaml:"markets"`
}

// Load reads a YAML file from disk and hydrates a Config struct, filling
// secrets from the environment where the file leaves them blank.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyEnv()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if c.Feed.Username == "" {
		c.Feed.Username = os.Getenv("FEED_USERNAME")
	}
	if c.Feed.Password == "" {
		c.Feed.Password = os.Getenv("FEED_PASSWORD")
	}
	if c.Scorer.APIKey == "" {
		c.Scorer.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// FeedURL returns the websocket URL with credentials in the userinfo
// section, the form the upstream feed authenticates on. Without a
// username the configured URL passes through untouched.
func (c *Config) FeedURL() string {
	if c.Feed.Username == "" {
		return c.Feed.URL
	}
	for _, scheme := range []string{"wss://", "ws://"} {
		if strings.HasPrefix(c.Feed.URL, scheme) {
			return fmt.Sprintf("%s%s:%s@%s", scheme, c.Feed.Username, c.Feed.Password, strings.TrimPrefix(c.Feed.URL, scheme))
		}
	}
	return c.Feed.URL
}
