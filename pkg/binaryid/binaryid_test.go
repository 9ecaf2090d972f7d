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

package binaryid

import (
	"encoding/binary"
	"testing"
)

func buildELF(osabi byte, machine uint16, is64 byte) []byte {
	h := make([]byte, 20)
	copy(h[0:4], []byte{0x7F, 'E', 'L', 'F'})
	h[4] = is64
	h[5] = 1 // little-endian
	h[7] = osabi
	binary.LittleEndian.PutUint16(h[18:20], machine)
	return h
}

func buildPE(machine uint16) []byte {
	b := make([]byte, 0x40+24)
	copy(b[0:2], []byte{'M', 'Z'})
	binary.LittleEndian.PutUint32(b[0x3C:0x40], 0x40)
	copy(b[0x40:0x44], []byte{'P', 'E', 0, 0})
	binary.LittleEndian.PutUint16(b[0x44:0x46], machine)
	return b
}

func buildMachO64() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], machoMagic64)
	binary.LittleEndian.PutUint32(b[4:8], machoCPUTypeARM64)
	return b
}

func TestDetectELFLinuxX8664(t *testing.T) {
	data := buildELF(elfOSABILinux, elfMachineX8664, 2)
	info, err := Detect(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OS != OSLinux || info.Arch != ArchX86_64 {
		t.Fatalf("got %+v", info)
	}
	if !info.Supported() {
		t.Fatalf("expected supported")
	}
}

func TestDetectELFAArch64(t *testing.T) {
	data := buildELF(elfOSABISysV, elfMachineAArch64, 2)
	info, err := Detect(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OS != OSLinux || info.Arch != ArchAArch64 {
		t.Fatalf("got %+v", info)
	}
}

func TestDetectPEWindowsAMD64(t *testing.T) {
	data := buildPE(peMachineAMD64)
	info, err := Detect(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OS != OSWindows || info.Arch != ArchX86_64 {
		t.Fatalf("got %+v", info)
	}
}

func TestDetectMachOARM64(t *testing.T) {
	data := buildMachO64()
	info, err := Detect(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OS != OSMacOS || info.Arch != ArchAArch64 {
		t.Fatalf("got %+v", info)
	}
}

func TestDetectFatMachOUnknownArch(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], machoFatMagic)
	info, err := Detect(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OS != OSMacOS || info.Arch != ArchUnknown {
		t.Fatalf("got %+v", info)
	}
	if info.Supported() {
		t.Fatalf("fat Mach-O should not be reported supported")
	}
}

func TestDetectMalformed(t *testing.T) {
	if _, err := Detect([]byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected error for short/unrecognized header")
	}
}

func TestCompatibleWith(t *testing.T) {
	a := Info{OS: OSLinux, Arch: ArchX86_64}
	b := Info{OS: OSLinux, Arch: ArchAArch64}
	if a.CompatibleWith(b) {
		t.Fatalf("expected incompatible architectures to be reported incompatible")
	}
	if !a.CompatibleWith(Info{OS: OSLinux, Arch: ArchX86_64}) {
		t.Fatalf("expected identical os/arch to be compatible")
	}
}

func TestDescription(t *testing.T) {
	info := Info{OS: OSLinux, Arch: ArchX86_64}
	if got, want := info.Description(), "Linux/x86-64 (64-bit)"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
