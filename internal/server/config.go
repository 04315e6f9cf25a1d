package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig reads server configuration from a TOML file and environment
// variables. Unknown keys are ignored. Pass an empty path to search the
// default locations.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("listen", "0.0.0.0:8080")
	v.SetDefault("db_path", "./data/panoptikon.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scanner.subnets", []string{})
	v.SetDefault("scanner.interval_seconds", 60)
	v.SetDefault("scanner.offline_grace_seconds", 300)
	v.SetDefault("scanner.netflow_enabled", true)
	v.SetDefault("scanner.netflow_port", 9995)
	v.SetDefault("scanner.mdns_enabled", true)

	v.SetDefault("auth.session_expiry_seconds", 86400)
	v.SetDefault("auth.failed_auth_per_minute", 10)

	v.SetDefault("agents.report_interval_seconds", 30)
	v.SetDefault("agents.offline_after_seconds", 120)

	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.webhook_timeout", "5s")
	v.SetDefault("alerts.bandwidth_threshold_bps", 0) // disabled until configured
	v.SetDefault("alerts.bandwidth_windows", 3)

	v.SetDefault("retention.traffic_samples_hours", 48)
	v.SetDefault("retention.agent_reports_days", 7)
	v.SetDefault("retention.device_events_days", 30)
	v.SetDefault("retention.alerts_days", 90)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("panoptikon")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/panoptikon")
	}

	// Environment variable support: PAN_LISTEN=0.0.0.0:9090
	v.SetEnvPrefix("PAN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
