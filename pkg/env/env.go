package env

import (
	"os"
	"strings"
)

// Prefix namespaces the settings read outside the envconfig structs.
const Prefix = "SOURCING_"

// Get returns SOURCING_<key> when set, then <key>, then fallback.
func Get(key, fallback string) string {
	if !strings.HasPrefix(key, Prefix) {
		if val := strings.TrimSpace(os.Getenv(Prefix + key)); val != "" {
			return val
		}
	}
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
