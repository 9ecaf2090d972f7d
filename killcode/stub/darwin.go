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

//go:build darwin

package stub

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/gofrs/flock"
	"github.com/kr/pty"
	"golang.org/x/sys/unix"

	"github.com/krishna-kush/killcode/pkg/klog"
)

// darwinPlatform materializes payloads as temp files, ad-hoc
// codesigns them (required to execute unsigned binaries on Apple
// silicon), and execs them directly.
type darwinPlatform struct{}

// NewPlatform returns this target's Platform implementation.
func NewPlatform() Platform { return darwinPlatform{} }

func (darwinPlatform) Spawn(data []byte, name string) (*os.Process, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%d", name, os.Getpid()))

	// A sibling launcher racing on the same pid/name pair (extremely
	// unlikely, but the temp path carries no other uniqueness) would
	// otherwise step on this path mid-write; flock serializes that
	// narrow window across processes sharing the temp dir.
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	defer lock.Unlock()
	defer os.Remove(path + ".lock")

	if err := os.WriteFile(path, data, 0o755); err != nil {
		return nil, fmt.Errorf("writing %s payload: %w", name, err)
	}

	if err := exec.Command("codesign", "--sign", "-", "--force", path).Run(); err != nil {
		// Apple silicon refuses to exec an unsigned image outright, so a
		// failed ad-hoc signature there is fatal; on x86_64 it's merely
		// unusual (Rosetta/older Gatekeeper policy tolerates it) and
		// only worth a warning.
		if runtime.GOARCH == "arm64" {
			os.Remove(path)
			return nil, fmt.Errorf("ad-hoc codesign of %s failed (required on arm64): %w", path, err)
		}
		klog.Warningf("ad-hoc codesign of %s failed: %v", path, err)
	}

	cmd := exec.Command(path)
	if name == "base" && isTerminal(os.Stdin.Fd()) {
		if err := startWithPTY(cmd); err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("exec %s with pty: %w", path, err)
		}
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("exec %s: %w", path, err)
		}
	}

	// The kernel keeps the running image's backing inode alive past
	// this unlink; nothing is left on disk once the process exits.
	os.Remove(path)

	return cmd.Process, nil
}

// isTerminal reports whether fd refers to a TTY.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TIOCGETA)
	return err == nil
}

// startWithPTY runs cmd attached to a freshly allocated pseudo-terminal
// and splices the launcher's own stdin/stdout through it.
func startWithPTY(cmd *exec.Cmd) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	go func() {
		if _, err := io.Copy(ptmx, os.Stdin); err != nil {
			klog.Warningf("pty stdin copy ended: %v", err)
		}
	}()
	go func() {
		if _, err := io.Copy(os.Stdout, ptmx); err != nil {
			klog.Warningf("pty stdout copy ended: %v", err)
		}
	}()
	return nil
}

func (darwinPlatform) Controller() ProcessController { return posixController{} }

type posixController struct{}

func (posixController) IsAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

func (posixController) Terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

func (posixController) Kill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
