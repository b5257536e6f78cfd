// Package g3config loads the planner's configuration file: provider
// resolution and retry-preset overrides.
package g3config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the planner's view of `<workspace>/.g3/config.yaml`.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers"`
	Agent     AgentConfig     `mapstructure:"agent"`
}

// ProvidersConfig resolves which `<type>.<name>` provider string backs each role.
type ProvidersConfig struct {
	Default string `mapstructure:"default_provider"`
	Planner string `mapstructure:"planner"`
	Coach   string `mapstructure:"coach"`
	Player  string `mapstructure:"player"`
}

// AgentConfig carries retry-preset tunables.
type AgentConfig struct {
	MaxRetryAttempts           int `mapstructure:"max_retry_attempts"`
	AutonomousMaxRetryAttempts int `mapstructure:"autonomous_max_retry_attempts"`
}

// ErrNoProvider is returned when neither a role override nor the default provider resolves.
var ErrNoProvider = fmt.Errorf(`no provider configured

Add a [providers] section to your config, e.g.:

  providers:
    default_provider: "anthropic.claude-sonnet-4"
    planner: "anthropic.claude-sonnet-4"
`)

// Load reads `<workspaceDir>/.g3/config.yaml`, falling back to defaults if absent.
func Load(workspaceDir string) (*Config, error) {
	configPath := filepath.Join(workspaceDir, ".g3", "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns a config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxRetryAttempts:           3,
			AutonomousMaxRetryAttempts: 6,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Agent.MaxRetryAttempts == 0 {
		cfg.Agent.MaxRetryAttempts = defaults.Agent.MaxRetryAttempts
	}
	if cfg.Agent.AutonomousMaxRetryAttempts == 0 {
		cfg.Agent.AutonomousMaxRetryAttempts = defaults.Agent.AutonomousMaxRetryAttempts
	}
}

// ResolveProvider picks the `<type>.<name>` string for a role, falling back to
// the default provider and reporting whether the fallback was used.
func (c *Config) ResolveProvider(role string) (provider string, usedDefault bool, err error) {
	var roleValue string
	switch role {
	case "planner":
		roleValue = c.Providers.Planner
	case "coach":
		roleValue = c.Providers.Coach
	case "player":
		roleValue = c.Providers.Player
	}
	if roleValue != "" {
		return roleValue, false, nil
	}
	if c.Providers.Default != "" {
		return c.Providers.Default, true, nil
	}
	return "", false, ErrNoProvider
}
