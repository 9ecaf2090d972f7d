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

//go:build linux

package stub

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/kr/pty"
	"golang.org/x/sys/unix"

	"github.com/krishna-kush/killcode/pkg/klog"
)

// linuxPlatform materializes payloads as anonymous, in-memory files
// via memfd_create and execs them through their /proc/self/fd/N alias
// — no file ever touches disk.
type linuxPlatform struct{}

// NewPlatform returns this target's Platform implementation.
func NewPlatform() Platform { return linuxPlatform{} }

func (linuxPlatform) Spawn(data []byte, name string) (*os.Process, error) {
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	// fd is inherited unmodified (no MFD_CLOEXEC): the forked child
	// below needs it open at the fd number ExtraFiles assigns it so
	// that exec can resolve /proc/self/fd/<n> to this image.
	f := os.NewFile(uintptr(fd), name)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing payload into memfd: %w", err)
	}

	// os/exec documents that ExtraFiles[i] becomes fd 3+i in the
	// child, so the path below is deterministic once f is the sole
	// entry.
	const childFd = 3
	cmd := exec.Command(fmt.Sprintf("/proc/self/fd/%d", childFd), name)
	cmd.ExtraFiles = []*os.File{f}

	// base is the only payload a user would ever want to type into
	// interactively; overload runs headless under the supervisor, so
	// it always gets the launcher's own stdio wired straight through.
	if name == "base" && isTerminal(os.Stdin.Fd()) {
		if startErr := startWithPTY(cmd); startErr != nil {
			f.Close()
			return nil, fmt.Errorf("exec via memfd with pty: %w", startErr)
		}
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			f.Close()
			return nil, fmt.Errorf("exec via memfd: %w", err)
		}
	}
	f.Close()
	return cmd.Process, nil
}

// isTerminal reports whether fd refers to a TTY, via the same termios
// ioctl isatty(3) wraps.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}

// startWithPTY runs cmd attached to a freshly allocated pseudo-terminal
// and splices the launcher's own stdin/stdout through it, so an
// interactive base payload (a shell, a REPL) behaves as if exec'd
// directly from this terminal instead of through the supervision
// pipeline.
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

func (linuxPlatform) Controller() ProcessController { return posixController{} }

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
