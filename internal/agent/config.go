// Package agent implements the endpoint agent: it collects local system
// health and streams reports to the server over a WebSocket session.
package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the agent's runtime settings.
type Config struct {
	ServerURL      string
	APIKey         string
	AgentID        string
	ReportInterval time.Duration
}

// LoadConfig reads the agent configuration. Precedence: the explicit
// --config path, then the user config dir, then the system config dir.
// PANAGENT_ environment variables override file values.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("PANAGENT")
	v.AutomaticEnv()

	v.SetDefault("report_interval_secs", 30)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "panoptikon-agent"))
		}
		v.AddConfigPath("/etc/panoptikon-agent")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
			// No file anywhere; env vars may still carry everything.
		}
	}

	cfg := Config{
		ServerURL:      v.GetString("server_url"),
		APIKey:         v.GetString("api_key"),
		AgentID:        v.GetString("agent_id"),
		ReportInterval: time.Duration(v.GetInt("report_interval_secs")) * time.Second,
	}
	if cfg.ServerURL == "" {
		return Config{}, fmt.Errorf("server_url is required")
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("api_key is required")
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 30 * time.Second
	}
	return cfg, nil
}
