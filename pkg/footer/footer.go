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

// Package footer encodes and decodes the fixed-layout configuration
// record appended to every assembled launcher.
package footer

import (
	"encoding/binary"
	"fmt"
)

// Magic is the literal byte string every footer begins with.
var Magic = [8]byte{'K', 'I', 'L', 'L', 'C', 'O', 'D', 'E'}

// Size is the encoded byte length of a Footer, fixed across all
// targets: 8 + 8*4 + 4 + 1 + 4 = 49 bytes.
const Size = 8 + 8 + 8 + 8 + 8 + 4 + 1 + 4

// SyncMode selects whether the overload payload gates base startup.
type SyncMode uint8

// Recognized sync modes.
const (
	Async SyncMode = 0
	Sync  SyncMode = 1
)

// Footer is the fixed-layout trailer describing payload offsets and
// supervision policy. All integers are little-endian; the format is
// written and parsed on the same host, so no network byte order
// conversion is performed (spec §9, open question 3).
type Footer struct {
	BaseOffset               uint64
	BaseSize                 uint64
	OverloadOffset           uint64
	OverloadSize             uint64
	GracePeriodSeconds       uint32
	SyncMode                 SyncMode
	NetworkFailureKillCount  uint32
}

// Encode serializes f into its on-disk 49-byte representation.
func (f Footer) Encode() []byte {
	buf := make([]byte, Size)
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint64(buf[8:16], f.BaseOffset)
	binary.LittleEndian.PutUint64(buf[16:24], f.BaseSize)
	binary.LittleEndian.PutUint64(buf[24:32], f.OverloadOffset)
	binary.LittleEndian.PutUint64(buf[32:40], f.OverloadSize)
	binary.LittleEndian.PutUint32(buf[40:44], f.GracePeriodSeconds)
	buf[44] = byte(f.SyncMode)
	binary.LittleEndian.PutUint32(buf[45:49], f.NetworkFailureKillCount)
	return buf
}

// ErrMalformedLauncher is returned when a footer cannot be located or
// validated in a launcher image.
type ErrMalformedLauncher struct {
	Reason string
}

func (e *ErrMalformedLauncher) Error() string {
	return fmt.Sprintf("malformed launcher: %s", e.Reason)
}

// Decode parses a Footer from its 49-byte on-disk representation and
// validates the magic.
func Decode(buf []byte) (Footer, error) {
	if len(buf) < Size {
		return Footer{}, &ErrMalformedLauncher{Reason: fmt.Sprintf("footer truncated: got %d bytes, want %d", len(buf), Size)}
	}
	var got [8]byte
	copy(got[:], buf[0:8])
	if got != Magic {
		return Footer{}, &ErrMalformedLauncher{Reason: "bad magic"}
	}
	f := Footer{
		BaseOffset:              binary.LittleEndian.Uint64(buf[8:16]),
		BaseSize:                binary.LittleEndian.Uint64(buf[16:24]),
		OverloadOffset:          binary.LittleEndian.Uint64(buf[24:32]),
		OverloadSize:            binary.LittleEndian.Uint64(buf[32:40]),
		GracePeriodSeconds:      binary.LittleEndian.Uint32(buf[40:44]),
		SyncMode:                SyncMode(buf[44]),
		NetworkFailureKillCount: binary.LittleEndian.Uint32(buf[45:49]),
	}
	return f, nil
}

// ExtractFromImage locates the footer in the trailing Size bytes of a
// full launcher image and returns it along with the base and overload
// payload slices it describes. The offset/length invariants from
// spec.md §3 are checked here: base precedes overload, and the
// footer's own position is consistent with the declared sizes.
func ExtractFromImage(image []byte) (ftr Footer, base []byte, overload []byte, err error) {
	if len(image) < Size {
		return Footer{}, nil, nil, &ErrMalformedLauncher{Reason: "image shorter than footer"}
	}
	f, err := Decode(image[len(image)-Size:])
	if err != nil {
		return Footer{}, nil, nil, err
	}
	if f.BaseOffset+f.BaseSize > f.OverloadOffset {
		return Footer{}, nil, nil, &ErrMalformedLauncher{Reason: "base payload overlaps overload payload"}
	}
	wantLen := f.OverloadOffset + f.OverloadSize + uint64(Size)
	if wantLen != uint64(len(image)) {
		return Footer{}, nil, nil, &ErrMalformedLauncher{Reason: fmt.Sprintf("footer offsets disagree with image length: want %d, got %d", wantLen, len(image))}
	}
	base = image[f.BaseOffset : f.BaseOffset+f.BaseSize]
	overload = image[f.OverloadOffset : f.OverloadOffset+f.OverloadSize]
	return f, base, overload, nil
}
