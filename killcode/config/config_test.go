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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/krishna-kush/killcode/pkg/footer"
)

func TestFromEnvDefaultsWhenUnset(t *testing.T) {
	c, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}

func TestFromEnvOverlaysSetVariables(t *testing.T) {
	t.Setenv("KILLCODE_HOST", "127.0.0.1")
	t.Setenv("KILLCODE_PORT", "9090")
	t.Setenv("KILLCODE_GRACE_PERIOD", "45")
	t.Setenv("KILLCODE_SYNC_MODE", "sync")
	t.Setenv("KILLCODE_BINARY_TTL", "120")

	c, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", c.Host)
	require.Equal(t, 9090, c.Port)
	require.Equal(t, uint32(45), c.GracePeriodSeconds)
	require.Equal(t, footer.Sync, c.SyncMode)
	require.Equal(t, 120*time.Second, c.BinaryTTL)
}

func TestFromEnvRejectsUnrecognizedSyncMode(t *testing.T) {
	t.Setenv("KILLCODE_SYNC_MODE", "maybe")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestLoadFileOverlaysOntoEnvDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "killcode.toml")
	require.NoError(t, os.WriteFile(path, []byte("grace_period = 60\nnetwork_failure_kill_count = 5\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(60), c.GracePeriodSeconds)
	require.Equal(t, uint32(5), c.NetworkFailureKillCount)
	require.Equal(t, Default().Host, c.Host) // untouched by the file
}
