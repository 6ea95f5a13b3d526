package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func envKey(name string) string {
	if strings.HasPrefix(name, EnvPrefix) {
		return name
	}
	return EnvPrefix + name
}

// GetEnvString retrieves a string from environment variables or returns the default value.
// The name is looked up with the TRENDS_ prefix.
func GetEnvString(name, defaultValue string) string {
	if value, exists := os.LookupEnv(envKey(name)); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an integer from environment variables or returns the default value.
func GetEnvInt(name string, defaultValue int) int {
	valStr := strings.TrimSpace(os.Getenv(envKey(name)))
	if valStr == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvFloat retrieves a float from environment variables or returns the default value.
func GetEnvFloat(name string, defaultValue float64) float64 {
	valStr := strings.TrimSpace(os.Getenv(envKey(name)))
	if valStr == "" {
		return defaultValue
	}

	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvBool retrieves a boolean from environment variables or returns the default value.
func GetEnvBool(name string, defaultValue bool) bool {
	valStr := strings.TrimSpace(os.Getenv(envKey(name)))
	if valStr == "" {
		return defaultValue
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvDuration retrieves a duration from environment variables or returns the default value.
// Values with units ("90s", "5m", "1h") are parsed as Go durations; bare integers
// are interpreted as seconds.
func GetEnvDuration(name string, defaultValue time.Duration) time.Duration {
	valStr := strings.TrimSpace(os.Getenv(envKey(name)))
	if valStr == "" {
		return defaultValue
	}

	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return time.Duration(val) * time.Second
}

// GetEnvLogLevel retrieves a log level from environment variables or returns the default value.
func GetEnvLogLevel(name string, defaultValue zerolog.Level) zerolog.Level {
	valStr := os.Getenv(envKey(name))
	if valStr == "" {
		return defaultValue
	}

	level, err := zerolog.ParseLevel(valStr)
	if err != nil {
		return defaultValue
	}
	return level
}
