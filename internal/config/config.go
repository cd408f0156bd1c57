// Package config loads the trading core's environment-variable
// configuration, with an optional .env file via godotenv.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/autotrader/tradingcore/internal/broker/kr"
	"github.com/autotrader/tradingcore/internal/broker/us"
)

// Config holds every environment-derived value the CLI needs to wire
// up a session.Runner.
type Config struct {
	MySQLDSN string

	UserID string // single operator account this process trades for

	Schwab us.Credentials
	KIS    kr.Credentials

	AlertFromEmail    string
	AlertFromPassword string
	AlertToEmails     []string

	RecordPath string

	// DaemonCronSpec is the schedule used when --daemon is set.
	DaemonCronSpec string
}

// Load reads configuration from the environment, loading a .env file
// first if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MySQLDSN:          getEnv("MYSQL_DSN", ""),
		UserID:            getEnv("TRADINGCORE_USER_ID", ""),
		AlertFromEmail:    getEnv("ALERT_FROM_EMAIL", ""),
		AlertFromPassword: getEnv("ALERT_FROM_PASSWORD", ""),
		RecordPath:        getEnv("RECORD_PATH", "records/session.jsonl"),
		DaemonCronSpec:    getEnv("DAEMON_CRON_SPEC", "30 9 * * MON-FRI"),
	}

	cfg.Schwab = us.Credentials{
		ClientID:     getEnv("SCHWAB_CLIENT_ID", ""),
		ClientSecret: getEnv("SCHWAB_CLIENT_SECRET", ""),
		RefreshToken: getEnv("SCHWAB_REFRESH_TOKEN", ""),
	}
	cfg.KIS = kr.Credentials{
		AppKey:    getEnv("KIS_APP_KEY", ""),
		AppSecret: getEnv("KIS_APP_SECRET", ""),
	}

	if toList := getEnv("ALERT_TO_EMAILS", ""); toList != "" {
		cfg.AlertToEmails = parseCommaList(toList)
	}

	return cfg, nil
}

// Validate checks the configuration needed to run against market.
func (c *Config) Validate(market string) error {
	if c.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("TRADINGCORE_USER_ID is required")
	}
	switch market {
	case "us":
		if c.Schwab.ClientID == "" || c.Schwab.ClientSecret == "" || c.Schwab.RefreshToken == "" {
			return fmt.Errorf("SCHWAB_CLIENT_ID, SCHWAB_CLIENT_SECRET, and SCHWAB_REFRESH_TOKEN are required for --market us")
		}
	case "kr":
		if c.KIS.AppKey == "" || c.KIS.AppSecret == "" {
			return fmt.Errorf("KIS_APP_KEY and KIS_APP_SECRET are required for --market kr")
		}
	default:
		return fmt.Errorf("unknown market %q, expected \"us\" or \"kr\"", market)
	}
	if c.AlertFromEmail != "" && len(c.AlertToEmails) == 0 {
		return fmt.Errorf("ALERT_TO_EMAILS is required when ALERT_FROM_EMAIL is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
