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

package healthregion

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Name returns the platform shared-region name for pid, per spec §6:
// Windows uses Local\OverloadHealth_<pid>.
func Name(pid int) string {
	return fmt.Sprintf(`Local\OverloadHealth_%d`, pid)
}

// CreateShared creates a new file-mapping-backed health region named
// for pid, initializes it, and returns it along with its platform
// name.
func CreateShared(pid int, now int64) (*Region, string, error) {
	name := Name(pid)
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, "", fmt.Errorf("encoding health region name: %w", err)
	}

	handle, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, Size, namePtr)
	if err != nil {
		return nil, "", fmt.Errorf("CreateFileMapping: %w", err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_ALL_ACCESS, 0, 0, Size)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, "", fmt.Errorf("MapViewOfFile: %w", err)
	}

	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), Size)
	r := newRegion(mem, func() error {
		uErr := windows.UnmapViewOfFile(addr)
		cErr := windows.CloseHandle(handle)
		if uErr != nil {
			return uErr
		}
		return cErr
	})
	r.Init(now)
	return r, name, nil
}

// OpenShared attaches to an existing health region by its platform
// name, as the overload payload does after reading EnvVar.
func OpenShared(name string) (*Region, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("encoding health region name: %w", err)
	}

	handle, err := windows.OpenFileMapping(windows.FILE_MAP_ALL_ACCESS, false, namePtr)
	if err != nil {
		return nil, fmt.Errorf("OpenFileMapping: %w", err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_ALL_ACCESS, 0, 0, Size)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}

	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), Size)
	return newRegion(mem, func() error {
		uErr := windows.UnmapViewOfFile(addr)
		cErr := windows.CloseHandle(handle)
		if uErr != nil {
			return uErr
		}
		return cErr
	}), nil
}
