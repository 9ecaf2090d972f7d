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

// Package cmd implements killcode's subcommands.
package cmd

import (
	"context"

	"github.com/krishna-kush/killcode/killcode/config"
)

type contextKey int

// ConfigPathKey is the context key cli.Main stores the --config flag
// value under, so subcommands can resolve the effective config
// without a global variable.
const ConfigPathKey contextKey = iota

func loadConfig(ctx context.Context) (config.Config, error) {
	path, _ := ctx.Value(ConfigPathKey).(string)
	return config.Load(path)
}
