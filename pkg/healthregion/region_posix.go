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

package healthregion

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Name returns the platform shared-region name for pid, per spec §6:
// POSIX uses /overload_health_<pid>.
func Name(pid int) string {
	return fmt.Sprintf("/overload_health_%d", pid)
}

// backingPath maps the logical POSIX shm name onto an on-disk path.
// x/sys/unix does not expose shm_open directly on every POSIX target
// (notably darwin), so the region is backed by an ordinary file
// opened with O_CREAT, which unix.Mmap(MAP_SHARED) maps identically
// to a true POSIX shared-memory object for same-host, same-OS
// sibling processes — the only case this contract covers.
func backingPath(name string) string {
	return filepath.Join(os.TempDir(), "killcode-shm-"+filepath.Base(name))
}

// CreateShared creates and maps a new health region named for pid,
// initializes it, and returns it along with its platform name. The
// caller must publish the name via EnvVar before spawning the
// overload child, and must call Close after the base child has
// exited.
func CreateShared(pid int, now int64) (*Region, string, error) {
	name := Name(pid)
	path := backingPath(name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, "", fmt.Errorf("creating health region backing file: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(Size); err != nil {
		return nil, "", fmt.Errorf("sizing health region: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, "", fmt.Errorf("mapping health region: %w", err)
	}

	r := newRegion(mem, func() error {
		err := unix.Munmap(mem)
		if rmErr := os.Remove(path); rmErr != nil && err == nil {
			err = rmErr
		}
		return err
	})
	r.Init(now)
	return r, name, nil
}

// OpenShared attaches to an existing health region by its platform
// name, as the overload payload does after reading EnvVar.
func OpenShared(name string) (*Region, error) {
	path := backingPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening health region: %w", err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping health region: %w", err)
	}
	return newRegion(mem, func() error {
		return unix.Munmap(mem)
	}), nil
}
