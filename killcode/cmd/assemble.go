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

	"github.com/krishna-kush/killcode/pkg/assembler"
	"github.com/krishna-kush/killcode/pkg/footer"
	"github.com/krishna-kush/killcode/pkg/klog"
)

// Assemble implements subcommands.Command for the "assemble" command.
type Assemble struct {
	basePath     string
	overloadPath string
	outputPath   string
	sync         bool
	gracePeriod  uint
	killCount    uint
}

// Name implements subcommands.Command.Name.
func (*Assemble) Name() string { return "assemble" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Assemble) Synopsis() string {
	return "merge a base and overload binary into one self-contained launcher."
}

// Usage implements subcommands.Command.Usage.
func (*Assemble) Usage() string {
	return `assemble -base <path> -overload <path> -o <path> - build a launcher.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Assemble) SetFlags(f *flag.FlagSet) {
	f.StringVar(&a.basePath, "base", "", "path to the base executable")
	f.StringVar(&a.overloadPath, "overload", "", "path to the overload executable")
	f.StringVar(&a.outputPath, "o", "", "path to write the assembled launcher")
	f.BoolVar(&a.sync, "sync", false, "run overload synchronously before base starts (default async)")
	f.UintVar(&a.gracePeriod, "grace-period", 0, "seconds of missed heartbeats tolerated before the supervisor kills base (0 uses config default)")
	f.UintVar(&a.killCount, "network-failure-kill-count", 0, "consecutive network failures reported by overload before the supervisor kills base (0 uses config default)")
}

// Execute implements subcommands.Command.Execute.
func (a *Assemble) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if a.basePath == "" || a.overloadPath == "" || a.outputPath == "" {
		klog.Errorf("-base, -overload and -o are all required")
		return subcommands.ExitUsageError
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		klog.Errorf("loading config: %v", err)
		return subcommands.ExitFailure
	}

	base, err := os.ReadFile(a.basePath)
	if err != nil {
		klog.Errorf("reading base payload: %v", err)
		return subcommands.ExitFailure
	}
	overload, err := os.ReadFile(a.overloadPath)
	if err != nil {
		klog.Errorf("reading overload payload: %v", err)
		return subcommands.ExitFailure
	}

	syncMode := cfg.SyncMode
	if a.sync {
		syncMode = footer.Sync
	}
	gracePeriod := cfg.GracePeriodSeconds
	if a.gracePeriod != 0 {
		gracePeriod = uint32(a.gracePeriod)
	}
	killCount := cfg.NetworkFailureKillCount
	if a.killCount != 0 {
		killCount = uint32(a.killCount)
	}

	image, err := assembler.Assemble(base, overload, assembler.Config{
		GracePeriodSeconds:      gracePeriod,
		SyncMode:                syncMode,
		NetworkFailureKillCount: killCount,
	})
	if err != nil {
		klog.Errorf("assembling launcher: %v", err)
		return subcommands.ExitFailure
	}

	if err := os.WriteFile(a.outputPath, image, 0o755); err != nil {
		klog.Errorf("writing launcher: %v", err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(os.Stdout, "wrote %s (%d bytes)\n", a.outputPath, len(image))
	return subcommands.ExitSuccess
}
