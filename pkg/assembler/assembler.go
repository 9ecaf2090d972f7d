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

// Package assembler builds a single self-contained launcher binary
// from a base and an overload payload: identify both, pick a matching
// stub, and concatenate stub || base || overload || footer.
package assembler

import (
	"github.com/krishna-kush/killcode/pkg/binaryid"
	"github.com/krishna-kush/killcode/pkg/footer"
	"github.com/krishna-kush/killcode/pkg/klog"
	"github.com/krishna-kush/killcode/pkg/service"
)

// Config carries the supervision policy the assembled launcher's
// footer encodes, and the optional collaborator hooks the assembler
// reports through.
type Config struct {
	GracePeriodSeconds      uint32
	SyncMode                footer.SyncMode
	NetworkFailureKillCount uint32

	// Catalog overrides the stub source; nil selects DefaultCatalog.
	Catalog Catalog

	// Reporter receives best-effort progress updates; nil, or an empty
	// Token, selects service.NoopProgressReporter.
	Reporter service.ProgressReporter

	// Token correlates progress updates with a caller's request, as a
	// real upload/download collaborator would thread through an HTTP
	// request ID. Ignored when Reporter is nil.
	Token string
}

func (c Config) catalog() Catalog {
	if c.Catalog != nil {
		return c.Catalog
	}
	return DefaultCatalog
}

func (c Config) reporter() service.ProgressReporter {
	if c.Reporter != nil && c.Token != "" {
		return c.Reporter
	}
	return service.NoopProgressReporter{}
}

func (c Config) report(step service.ProgressStep) {
	if err := c.reporter().Report(c.Token, step); err != nil {
		klog.Warningf("progress report for step %q failed: %v", step, err)
	}
}

// Assemble validates base and overload, selects a matching stub, and
// returns the complete launcher image: stub || base || overload ||
// footer. Both payloads must identify as the same OS and architecture,
// and that platform must have a catalog entry.
func Assemble(base, overload []byte, cfg Config) ([]byte, error) {
	if len(base) == 0 {
		return nil, &EmptyPayloadError{Which: "base"}
	}
	if len(overload) == 0 {
		return nil, &EmptyPayloadError{Which: "overload"}
	}

	cfg.report(service.StepDetectingPlatforms)
	baseInfo, err := binaryid.Detect(base)
	if err != nil {
		return nil, err
	}
	overloadInfo, err := binaryid.Detect(overload)
	if err != nil {
		return nil, err
	}
	klog.Infof("detected base payload as %s, overload payload as %s", baseInfo.Description(), overloadInfo.Description())

	cfg.report(service.StepValidatingPlatforms)
	if !baseInfo.CompatibleWith(overloadInfo) {
		return nil, &IncompatiblePayloadsError{Base: baseInfo, Overload: overloadInfo}
	}
	if !baseInfo.Supported() {
		return nil, &UnsupportedPlatformError{Which: "base", Info: baseInfo}
	}
	if !overloadInfo.Supported() {
		return nil, &UnsupportedPlatformError{Which: "overload", Info: overloadInfo}
	}

	cfg.report(service.StepCreatingLoader)
	stub, err := cfg.catalog().Stub(baseInfo)
	if err != nil {
		return nil, err
	}
	klog.Infof("selected stub for %s (%d bytes)", baseInfo.Description(), len(stub))

	cfg.report(service.StepWritingBinaries)
	baseOffset := uint64(len(stub))
	overloadOffset := baseOffset + uint64(len(base))
	ftr := footer.Footer{
		BaseOffset:              baseOffset,
		BaseSize:                uint64(len(base)),
		OverloadOffset:          overloadOffset,
		OverloadSize:            uint64(len(overload)),
		GracePeriodSeconds:      cfg.GracePeriodSeconds,
		SyncMode:                cfg.SyncMode,
		NetworkFailureKillCount: cfg.NetworkFailureKillCount,
	}

	cfg.report(service.StepCompilingLoader)
	total := len(stub) + len(base) + len(overload) + footer.Size
	image := make([]byte, 0, total)
	image = append(image, stub...)
	image = append(image, base...)
	image = append(image, overload...)
	image = append(image, ftr.Encode()...)

	cfg.report(service.StepFinalizing)
	klog.Infof("assembled launcher: %d bytes (stub %d, base %d, overload %d, footer %d)",
		len(image), len(stub), len(base), len(overload), footer.Size)

	return image, nil
}
