// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/emtf-tree/internal/log"
)

// EnvPrefix starts every environment variable read by the loader.
const EnvPrefix = "EMTF_TREE_"

// ParseString reads a string from the environment or returns defaultValue.
// Unset and empty variables both fall back to the default.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer, falling back to defaultValue when the
// variable is unset, empty or malformed.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

func ParseInt64(key string, defaultValue int64) int64 {
	return parseEnv(key, defaultValue, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

// ParseDuration reads a Go duration such as "5s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// ParseBool accepts "true", "false", "1", "0", "yes" and "no" in any case.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", s)
	})
}

func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	return parseEnvWithLogger(log.WithComponent("config"), key, defaultValue, parse)
}

// parseEnvWithLogger logs where each value came from. Values of keys that
// look like secrets are never logged.
func parseEnvWithLogger[T any](logger zerolog.Logger, key string, defaultValue T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		msg := "using default value"
		if ok {
			msg = "using default value (environment variable is empty)"
		}
		logger.Debug().
			Str("key", key).
			Interface("default", masked(key, defaultValue)).
			Str("source", "default").
			Msg(msg)
		return defaultValue
	}
	v, err := parse(raw)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Interface("value", masked(key, raw)).
			Interface("default", masked(key, defaultValue)).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if sensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password")
}

func masked(key string, v any) any {
	if sensitive(key) {
		return "***"
	}
	return v
}
