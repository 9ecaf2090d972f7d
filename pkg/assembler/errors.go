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
	"fmt"

	"github.com/krishna-kush/killcode/pkg/binaryid"
)

// UnsupportedPlatformError is returned when a payload's identified
// platform fails binaryid.Info.Supported. A supported platform with no
// catalog entry yields StubNotFoundError instead.
type UnsupportedPlatformError struct {
	Which string // "base" or "overload"
	Info  binaryid.Info
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform for %s payload: %s", e.Which, e.Info.Description())
}

// IncompatiblePayloadsError is returned when the base and overload
// payloads target different operating systems or architectures.
type IncompatiblePayloadsError struct {
	Base     binaryid.Info
	Overload binaryid.Info
}

func (e *IncompatiblePayloadsError) Error() string {
	return fmt.Sprintf("incompatible payloads: base is %s, overload is %s", e.Base.Description(), e.Overload.Description())
}

// StubNotFoundError is returned when the catalog recognizes the
// platform as supported in principle but carries no stub artifact for
// it at runtime — e.g. the embedded build omitted it.
type StubNotFoundError struct {
	Info binaryid.Info
}

func (e *StubNotFoundError) Error() string {
	return fmt.Sprintf("no stub artifact available for %s", e.Info.Description())
}

// EmptyPayloadError is returned when either payload is zero-length.
type EmptyPayloadError struct {
	Which string
}

func (e *EmptyPayloadError) Error() string {
	return fmt.Sprintf("%s payload is empty", e.Which)
}
