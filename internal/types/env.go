package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// EnvBool parses key as a boolean when set.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvList splits a comma separated variable into trimmed non-empty items.
func EnvList(key string) ([]string, bool) {
	value, ok := EnvString(key)
	if !ok {
		return nil, false
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, len(items) > 0
}

// ApplyEnv overlays LC_* environment variables on the configuration.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("LC_BASE_URL"); ok {
		c.BaseURL = value
	}
	if shelves, ok := EnvList("LC_PRIMARY_SHELVES"); ok {
		c.PrimaryShelves = shelves
	}
	if noise, ok := EnvList("LC_SHELF_NOISE"); ok {
		c.ShelfNoise = noise
	}
	headless, ok, err := EnvBool("LC_HEADLESS")
	if err != nil {
		return err
	}
	if ok {
		c.ShowBrowser = !headless
	}
	return nil
}
