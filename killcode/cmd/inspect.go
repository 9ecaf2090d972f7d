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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/krishna-kush/killcode/pkg/binaryid"
	"github.com/krishna-kush/killcode/pkg/footer"
	"github.com/krishna-kush/killcode/pkg/klog"
)

// Inspect implements subcommands.Command for the "inspect" command: it
// prints a launcher's footer and both payloads' identified platforms
// without running it.
type Inspect struct{}

// Name implements subcommands.Command.Name.
func (*Inspect) Name() string { return "inspect" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Inspect) Synopsis() string {
	return "print the footer and payload platforms of an assembled launcher."
}

// Usage implements subcommands.Command.Usage.
func (*Inspect) Usage() string {
	return `inspect <launcher> - describe an assembled launcher.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Inspect) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Inspect) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	image, err := os.ReadFile(f.Arg(0))
	if err != nil {
		klog.Errorf("reading launcher: %v", err)
		return subcommands.ExitFailure
	}

	ftr, base, overload, err := footer.ExtractFromImage(image)
	if err != nil {
		klog.Errorf("parsing launcher: %v", err)
		return subcommands.ExitFailure
	}

	baseInfo, baseErr := binaryid.Detect(base)
	overloadInfo, overloadErr := binaryid.Detect(overload)

	fmt.Fprintf(os.Stdout, "image size:      %d bytes\n", len(image))
	fmt.Fprintf(os.Stdout, "stub size:       %d bytes\n", ftr.BaseOffset)
	fmt.Fprintf(os.Stdout, "base size:       %d bytes\n", ftr.BaseSize)
	fmt.Fprintf(os.Stdout, "overload size:   %d bytes\n", ftr.OverloadSize)
	fmt.Fprintf(os.Stdout, "sync mode:       %v\n", syncModeString(ftr.SyncMode))
	fmt.Fprintf(os.Stdout, "grace period:    %ds\n", ftr.GracePeriodSeconds)
	fmt.Fprintf(os.Stdout, "kill threshold:  %d consecutive network failures\n", ftr.NetworkFailureKillCount)
	if baseErr == nil {
		fmt.Fprintf(os.Stdout, "base platform:   %s\n", baseInfo.Description())
	} else {
		fmt.Fprintf(os.Stdout, "base platform:   unknown (%v)\n", baseErr)
	}
	if overloadErr == nil {
		fmt.Fprintf(os.Stdout, "overload platform: %s\n", overloadInfo.Description())
	} else {
		fmt.Fprintf(os.Stdout, "overload platform: unknown (%v)\n", overloadErr)
	}

	return subcommands.ExitSuccess
}

func syncModeString(m footer.SyncMode) string {
	if m == footer.Sync {
		return "sync"
	}
	return "async"
}
