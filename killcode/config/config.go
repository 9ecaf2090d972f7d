// Copyright 2024 The KillCode Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads KillCode's runtime configuration: assembler
// policy defaults and collaborator-service settings, read from
// KILLCODE_-prefixed environment variables and optionally overlaid by
// a TOML file. CLI flags registered by the killcode/cmd subcommands
// take precedence over both, applied by the caller after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/krishna-kush/killcode/pkg/footer"
)

// Config is KillCode's full runtime configuration.
type Config struct {
	// Collaborator-service settings, carried over from the upstream
	// project's environment-driven Config::from_env.
	Host                   string        `toml:"host"`
	Port                   int           `toml:"port"`
	TempDir                string        `toml:"temp_dir"`
	BinaryExpirationHours  int64         `toml:"binary_expiration_hours"`
	CleanupInterval        time.Duration `toml:"cleanup_interval"`
	MaxFileSize            int64         `toml:"max_file_size"`
	BinaryTTL              time.Duration `toml:"binary_ttl"`

	// Assembler policy defaults, encoded into every launcher's footer
	// unless overridden by an explicit per-request value.
	GracePeriodSeconds      uint32          `toml:"grace_period"`
	SyncMode                footer.SyncMode `toml:"sync_mode"`
	NetworkFailureKillCount uint32          `toml:"network_failure_kill_count"`
}

// Default returns the configuration used when no environment
// variables or TOML file are present, matching the upstream project's
// built-in fallbacks.
func Default() Config {
	return Config{
		Host:                    "0.0.0.0",
		Port:                    8080,
		TempDir:                 "/tmp/killcode",
		BinaryExpirationHours:   24,
		CleanupInterval:         time.Hour,
		MaxFileSize:             200 * 1024 * 1024,
		BinaryTTL:               time.Hour,
		GracePeriodSeconds:      15,
		SyncMode:                footer.Async,
		NetworkFailureKillCount: 3,
	}
}

// FromEnv starts from Default and overlays any KILLCODE_-prefixed
// environment variable that is set. A present but unparsable value is
// logged by the caller via the returned error and otherwise ignored,
// matching the upstream project's unwrap_or(default) behavior.
func FromEnv() (Config, error) {
	c := Default()
	var errs []error

	getString(&c.Host, "KILLCODE_HOST")
	getInt(&c.Port, "KILLCODE_PORT", &errs)
	getString(&c.TempDir, "KILLCODE_TEMP_DIR")
	getInt64(&c.BinaryExpirationHours, "KILLCODE_EXPIRATION_HOURS", &errs)
	getDurationSeconds(&c.CleanupInterval, "KILLCODE_CLEANUP_INTERVAL", &errs)
	getInt64(&c.MaxFileSize, "KILLCODE_MAX_SIZE", &errs)
	getDurationSeconds(&c.BinaryTTL, "KILLCODE_BINARY_TTL", &errs)
	getUint32(&c.GracePeriodSeconds, "KILLCODE_GRACE_PERIOD", &errs)
	getUint32(&c.NetworkFailureKillCount, "KILLCODE_NETWORK_FAILURE_KILL_COUNT", &errs)
	if v, ok := os.LookupEnv("KILLCODE_SYNC_MODE"); ok {
		switch v {
		case "sync":
			c.SyncMode = footer.Sync
		case "async":
			c.SyncMode = footer.Async
		default:
			errs = append(errs, fmt.Errorf("KILLCODE_SYNC_MODE: unrecognized value %q, want sync or async", v))
		}
	}

	if len(errs) > 0 {
		return c, fmt.Errorf("loading config from environment: %w", errs[0])
	}
	return c, nil
}

// LoadFile overlays fields present in a TOML file at path onto base.
// A field absent from the file leaves base's value untouched.
func LoadFile(path string, base Config) (Config, error) {
	c := base
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return base, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return c, nil
}

// Load builds the effective configuration: environment variables
// overlaid by path's TOML contents, if path is non-empty.
func Load(path string) (Config, error) {
	c, err := FromEnv()
	if err != nil {
		return c, err
	}
	if path == "" {
		return c, nil
	}
	return LoadFile(path, c)
}

func getString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func getInt(dst *int, key string, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func getInt64(dst *int64, key string, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func getUint32(dst *uint32, key string, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = uint32(n)
}

func getDurationSeconds(dst *time.Duration, key string, errs *[]error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = time.Duration(n) * time.Second
}
