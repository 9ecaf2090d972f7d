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

package footer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Footer{
		BaseOffset:              1000,
		BaseSize:                2000,
		OverloadOffset:          3000,
		OverloadSize:            4000,
		GracePeriodSeconds:      30,
		SyncMode:                Sync,
		NetworkFailureKillCount: 5,
	}
	buf := f.Encode()
	require.Len(t, buf, Size)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := Footer{}.Encode()
	buf[0] = 'X'
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	require.Error(t, err)
}

func TestExtractFromImage(t *testing.T) {
	stub := []byte("STUBBYTES")
	base := []byte("BASE-PAYLOAD-DATA")
	overload := []byte("OVERLOAD-PAYLOAD-DATA-LONGER")

	f := Footer{
		BaseOffset:     uint64(len(stub)),
		BaseSize:       uint64(len(base)),
		OverloadOffset: uint64(len(stub) + len(base)),
		OverloadSize:   uint64(len(overload)),
		SyncMode:       Async,
	}

	image := append([]byte{}, stub...)
	image = append(image, base...)
	image = append(image, overload...)
	image = append(image, f.Encode()...)

	gotFooter, gotBase, gotOverload, err := ExtractFromImage(image)
	require.NoError(t, err)
	require.Equal(t, f, gotFooter)
	require.Equal(t, base, gotBase)
	require.Equal(t, overload, gotOverload)
}

func TestExtractFromImageRejectsLengthMismatch(t *testing.T) {
	f := Footer{BaseOffset: 0, BaseSize: 4, OverloadOffset: 4, OverloadSize: 4}
	image := append([]byte("BASEOVER"), 0xFF) // extra byte before the footer breaks the length invariant
	image = append(image, f.Encode()...)
	_, _, _, err := ExtractFromImage(image)
	require.Error(t, err)
}

func TestExtractFromImageRejectsOverlap(t *testing.T) {
	f := Footer{BaseOffset: 0, BaseSize: 10, OverloadOffset: 5, OverloadSize: 4}
	image := append(make([]byte, 9), f.Encode()...)
	_, _, _, err := ExtractFromImage(image)
	require.Error(t, err)
}
