package env

import (
	"os"
	"strconv"
	"strings"
)

// Prefix namespaces the process settings. Unprefixed names are still read so
// platform-provided variables such as PORT keep working.
const Prefix = "COFFEESHOP_"

// Lookup returns the trimmed value of PREFIX+key, then key.
func Lookup(key string) (string, bool) {
	for _, name := range []string{Prefix + key, key} {
		if val, ok := os.LookupEnv(name); ok {
			if val = strings.TrimSpace(val); val != "" {
				return val, true
			}
		}
	}
	return "", false
}

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val, ok := Lookup(key); ok {
		return val
	}
	return fallback
}

// Bool parses a boolean setting; unparsable values fall back.
func Bool(key string, fallback bool) bool {
	val, ok := Lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
