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

// Package cli is the main entrypoint for the killcode command.
package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/krishna-kush/killcode/killcode/cmd"
	"github.com/krishna-kush/killcode/pkg/klog"
)

var (
	debug      = flag.Bool("debug", false, "enable debug logging.")
	configPath = flag.String("config", "", "path to an optional TOML config file overlaid on environment defaults.")
)

// versionString is set by the release build via -ldflags; it defaults
// to "dev" for local builds.
var versionString = "dev"

// Main is the CLI entrypoint. It registers every subcommand, parses
// flags, and dispatches.
func Main() subcommands.ExitStatus {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&cmd.Assemble{}, "")
	subcommands.Register(&cmd.Inspect{}, "")
	subcommands.Register(&cmd.Version{Version: versionString}, "")

	flag.Parse()

	if *debug {
		klog.SetLevel(logrus.DebugLevel)
	}

	ctx := context.WithValue(context.Background(), cmd.ConfigPathKey, *configPath)
	status := subcommands.Execute(ctx)
	return status
}
