package config

import "os"

// getEnv reads an environment variable, falling back to defaultValue when
// unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
