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

//go:build windows

package stub

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"golang.org/x/sys/windows"

	"github.com/krishna-kush/killcode/pkg/klog"
)

// windowsPlatform materializes payloads as temp .exe files and starts
// them with CreateProcess (via os/exec, which wraps it on this GOOS).
type windowsPlatform struct{}

// NewPlatform returns this target's Platform implementation.
func NewPlatform() Platform { return windowsPlatform{} }

func (windowsPlatform) Spawn(data []byte, name string) (*os.Process, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%d.exe", name, os.Getpid()))

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	defer lock.Unlock()
	defer os.Remove(path + ".lock")

	if err := os.WriteFile(path, data, 0o755); err != nil {
		return nil, fmt.Errorf("writing %s payload: %w", name, err)
	}

	cmd := exec.Command(path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("exec %s: %w", path, err)
	}

	// Unlike POSIX, Windows will not remove a file while a running
	// image still maps it. Retry the removal a few times with backoff
	// for the common case of a transient sharing violation right after
	// Start, rather than either blocking indefinitely or giving up on
	// the first attempt.
	go cleanupTempFile(path)

	return cmd.Process, nil
}

// cleanupTempFile retries os.Remove against ERROR_SHARING_VIOLATION-
// style failures for up to 10 seconds, then logs a warning and gives
// up: a leaked
// temp exe after the process holding it exits is cosmetic, not a
// correctness problem.
func cleanupTempFile(path string) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(func() error {
		return os.Remove(path)
	}, bo); err != nil {
		klog.Warningf("could not clean up temp payload %s: %v", path, err)
	}
}

func (windowsPlatform) Controller() ProcessController { return windowsController{} }

type windowsController struct{}

func (windowsController) IsAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(h, &exitCode); err != nil {
		return false
	}
	return exitCode == windows.STILL_ACTIVE
}

// Terminate has no graceful-shutdown equivalent to SIGTERM on
// Windows; it goes straight to TerminateProcess, same as Kill.
func (windowsController) Terminate(pid int) error {
	return windowsController{}.Kill(pid)
}

func (windowsController) Kill(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess: %w", err)
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}
