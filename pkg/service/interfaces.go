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

// Package service defines the interfaces the out-of-scope collaborator
// service (HTTP upload/download, multipart decoding, Redis-backed
// progress, temp-file TTL cleanup, stored-binary metadata) presents to
// the assembler core. None of these interfaces are implemented here;
// the core depends only on their shape.
package service

import (
	"io"
	"time"
)

// ProgressStep is one of the six recognized assembly milestones the
// assembler publishes, advisory and independent of correctness.
type ProgressStep string

// Recognized progress steps. The assembler reports each once, in the
// order detecting_platforms, validating_platforms, creating_loader,
// writing_binaries, compiling_loader, finalizing.
const (
	StepDetectingPlatforms  ProgressStep = "detecting_platforms"
	StepValidatingPlatforms ProgressStep = "validating_platforms"
	StepWritingBinaries     ProgressStep = "writing_binaries"
	StepCreatingLoader      ProgressStep = "creating_loader"
	StepCompilingLoader     ProgressStep = "compiling_loader"
	StepFinalizing          ProgressStep = "finalizing"
)

// ProgressReporter publishes a step update for a correlation token.
// The assembler calls it best-effort: a reporting failure never fails
// the assembly itself.
type ProgressReporter interface {
	Report(token string, step ProgressStep) error
}

// NoopProgressReporter discards every update. It is the default used
// when the assembler is invoked without a correlation token.
type NoopProgressReporter struct{}

// Report implements ProgressReporter.
func (NoopProgressReporter) Report(string, ProgressStep) error { return nil }

// BinaryStore is the interface a stored-binary metadata service would
// implement: content-addressed storage with a time-to-live, used by
// the upload/download collaborator. Not implemented by this module.
type BinaryStore interface {
	Put(id string, data []byte, ttl time.Duration) error
	Get(id string) ([]byte, error)
	Delete(id string) error
}

// UploadHandler is the narrow interface an HTTP multipart layer would
// satisfy to hand the assembler two payload byte streams. Not
// implemented by this module.
type UploadHandler interface {
	ReceiveUpload(base, overload io.Reader) error
}

// DownloadHandler is the narrow interface an HTTP layer would satisfy
// to stream an assembled launcher back to a caller by ID. Not
// implemented by this module.
type DownloadHandler interface {
	StreamMerged(w io.Writer, id string) error
}
