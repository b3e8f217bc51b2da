package config

import (
	"os"
	"strings"
)

type Config struct {
	Port           string
	DBPath         string
	CarbonAPIURL   string
	CarbonAPIToken string
	DefaultRegion  string
	CompareRegions []string
	CountryCode    string
	// EvalSchedule is a cron expression for periodic evaluation cycles.
	// Empty disables the background evaluator.
	EvalSchedule string
}

func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "carbonsched.db"),
		CarbonAPIURL:   getEnv("CARBON_API_URL", "https://api.electricitymap.com/v3/carbon-intensity/latest"),
		CarbonAPIToken: getEnv("CARBON_API_TOKEN", "demo"),
		DefaultRegion:  getEnv("DEFAULT_REGION", "IN"),
		CompareRegions: getEnvList("COMPARE_REGIONS", []string{"IN", "US", "DE", "NO", "AU"}),
		CountryCode:    getEnv("COUNTRY_CODE", "IN"),
		EvalSchedule:   getEnv("EVAL_SCHEDULE", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
