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

package assembler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krishna-kush/killcode/pkg/binaryid"
	"github.com/krishna-kush/killcode/pkg/footer"
	"github.com/krishna-kush/killcode/pkg/service"
)

func elfPayload(machine uint16) []byte {
	h := make([]byte, 20)
	copy(h[0:4], []byte{0x7F, 'E', 'L', 'F'})
	h[4] = 2 // ELFCLASS64
	h[5] = 1 // ELFDATA2LSB
	h[7] = 0 // ELFOSABI_SYSV
	binary.LittleEndian.PutUint16(h[18:20], machine)
	return append(h, []byte("payload-bytes-follow")...)
}

// fakeCatalog serves an in-memory stub so tests never depend on
// stubs/catalog's build-time placeholder artifacts.
type fakeCatalog struct {
	stub []byte
	err  error
}

func (c fakeCatalog) Stub(binaryid.Info) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stub, nil
}

// recordingReporter captures every step reported, in order.
type recordingReporter struct {
	steps []service.ProgressStep
}

func (r *recordingReporter) Report(_ string, step service.ProgressStep) error {
	r.steps = append(r.steps, step)
	return nil
}

func TestAssembleLayoutAndFooter(t *testing.T) {
	base := elfPayload(0x3E)     // EM_X86_64
	overload := elfPayload(0x3E) // EM_X86_64
	stub := []byte("STUBSTUBSTUB")
	reporter := &recordingReporter{}

	image, err := Assemble(base, overload, Config{
		GracePeriodSeconds:      30,
		SyncMode:                footer.Sync,
		NetworkFailureKillCount: 3,
		Catalog:                 fakeCatalog{stub: stub},
		Reporter:                reporter,
		Token:                   "req-1",
	})
	require.NoError(t, err)

	wantLen := len(stub) + len(base) + len(overload) + footer.Size
	require.Len(t, image, wantLen)
	require.Equal(t, stub, image[:len(stub)])

	ftr, extractedBase, extractedOverload, err := footer.ExtractFromImage(image)
	require.NoError(t, err)
	require.Equal(t, base, extractedBase)
	require.Equal(t, overload, extractedOverload)
	require.Equal(t, uint32(30), ftr.GracePeriodSeconds)
	require.Equal(t, footer.Sync, ftr.SyncMode)
	require.Equal(t, uint32(3), ftr.NetworkFailureKillCount)

	require.Equal(t, []service.ProgressStep{
		service.StepDetectingPlatforms,
		service.StepValidatingPlatforms,
		service.StepCreatingLoader,
		service.StepWritingBinaries,
		service.StepCompilingLoader,
		service.StepFinalizing,
	}, reporter.steps)
}

func TestAssembleRejectsIncompatiblePlatforms(t *testing.T) {
	base := elfPayload(0x3E)    // EM_X86_64
	overload := elfPayload(0xB7) // EM_AARCH64

	_, err := Assemble(base, overload, Config{Catalog: fakeCatalog{stub: []byte("x")}})
	require.Error(t, err)
	var incompatible *IncompatiblePayloadsError
	require.ErrorAs(t, err, &incompatible)
}

func TestAssembleRejectsUnsupportedArchitecture(t *testing.T) {
	base := elfPayload(0x08)     // EM_MIPS, not in the stub catalog
	overload := elfPayload(0x08) // EM_MIPS

	_, err := Assemble(base, overload, Config{Catalog: fakeCatalog{stub: []byte("x")}})
	require.Error(t, err)
	var unsupported *UnsupportedPlatformError
	require.ErrorAs(t, err, &unsupported)
}

func TestAssembleRejectsEmptyPayload(t *testing.T) {
	_, err := Assemble(nil, []byte("x"), Config{})
	require.Error(t, err)
	var empty *EmptyPayloadError
	require.ErrorAs(t, err, &empty)
	require.Equal(t, "base", empty.Which)
}

func TestAssembleSurfacesStubNotFound(t *testing.T) {
	base := elfPayload(0x3E)
	overload := elfPayload(0x3E)

	_, err := Assemble(base, overload, Config{Catalog: fakeCatalog{err: &StubNotFoundError{}}})
	require.Error(t, err)
	var notFound *StubNotFoundError
	require.ErrorAs(t, err, &notFound)
}
