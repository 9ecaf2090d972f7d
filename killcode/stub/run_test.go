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

//go:build linux || darwin

package stub

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krishna-kush/killcode/pkg/footer"
)

// shellPlatform ignores the payload bytes it's handed and instead runs
// "sh -c <script>" chosen by exitScripts[name], so Run's orchestration
// can be exercised without a real memfd/codesign round trip.
type shellPlatform struct {
	exitScripts map[string]string
}

func (p shellPlatform) Spawn(_ []byte, name string) (*os.Process, error) {
	script := p.exitScripts[name]
	cmd := exec.Command("sh", "-c", script)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Process, nil
}

func (shellPlatform) Controller() ProcessController { return posixController{} }

func TestRunSyncModeVerificationSuccess(t *testing.T) {
	platform := shellPlatform{exitScripts: map[string]string{
		"overload": "exit 0",
		"base":     "exit 7",
	}}
	ftr := footer.Footer{SyncMode: footer.Sync}

	code, err := Run(platform, []byte("base"), []byte("overload"), ftr)
	require.NoError(t, err)
	require.Equal(t, 7, code)
}

func TestRunSyncModeVerificationFailure(t *testing.T) {
	platform := shellPlatform{exitScripts: map[string]string{
		"overload": "exit 3",
		"base":     "exit 0",
	}}
	ftr := footer.Footer{SyncMode: footer.Sync}

	_, err := Run(platform, []byte("base"), []byte("overload"), ftr)
	require.Error(t, err)
	var verificationErr *VerificationFailedError
	require.ErrorAs(t, err, &verificationErr)
	require.Equal(t, 3, verificationErr.ExitCode)
}

func TestRunAsyncModeReturnsBaseExitCode(t *testing.T) {
	platform := shellPlatform{exitScripts: map[string]string{
		"overload": "sleep 5",
		"base":     "exit 0",
	}}
	ftr := footer.Footer{SyncMode: footer.Async}

	code, err := Run(platform, []byte("base"), []byte("overload"), ftr)
	require.NoError(t, err)
	require.Equal(t, 0, code)
}
