package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents motionbridge.yaml
type Config struct {
	Version string        `yaml:"version"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Gateway GatewayConfig `yaml:"gateway"`
	LLM     LLMConfig     `yaml:"llm"`
}

// BridgeConfig holds the tool bridge settings
type BridgeConfig struct {
	// Listen address for the multiplexed endpoint
	Addr string `yaml:"addr"`

	// Motion controller REST API
	BackendURL     string        `yaml:"backend_url"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// Long-running operation polling bounds
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Invocation audit database
	DBPath string `yaml:"db_path"`
}

// GatewayConfig holds the chat gateway settings
type GatewayConfig struct {
	Addr string `yaml:"addr"`

	// Bridge endpoint the gateway opens its session against
	BridgeURL     string        `yaml:"bridge_url"`
	BridgeTimeout time.Duration `yaml:"bridge_timeout"`
}

// LLMConfig holds the completion API settings
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the baseline configuration
func Default() *Config {
	return &Config{
		Version: "1",
		Bridge: BridgeConfig{
			Addr:           ":8720",
			BackendURL:     "http://127.0.0.1:5000",
			BackendTimeout: 15 * time.Second,
			PollTimeout:    30 * time.Second,
			PollInterval:   2 * time.Second,
			DBPath:         defaultDBPath(),
		},
		Gateway: GatewayConfig{
			Addr:          ":8721",
			BridgeURL:     "http://127.0.0.1:8720/mcp",
			BridgeTimeout: 60 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 120 * time.Second,
		},
	}
}

// Load reads the config file, layering it over defaults. A missing file is
// not an error; the defaults apply. MOTIONBRIDGE_API_KEY overrides the file
// so keys can stay out of version control.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to path
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("MOTIONBRIDGE_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
}

func (c *Config) validate() error {
	if c.Bridge.BackendURL == "" {
		return fmt.Errorf("bridge.backend_url is required")
	}
	if c.Bridge.PollInterval <= 0 {
		c.Bridge.PollInterval = 2 * time.Second
	}
	if c.Bridge.PollTimeout <= 0 {
		c.Bridge.PollTimeout = 30 * time.Second
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "motionbridge.db"
	}
	return filepath.Join(home, ".motionbridge", "motionbridge.db")
}
