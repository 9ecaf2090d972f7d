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

// Package catalog embeds the prebuilt stub/supervisor binaries for
// every supported (OS, architecture) pair so the assembler can be
// distributed as a single self-contained binary. See README.md in
// this directory for how the per-target files are staged before
// build.
package catalog

import "embed"

//go:embed linux_x86 linux_x86_64 linux_arm64 darwin_x86_64 darwin_arm64 windows_x86 windows_x86_64 windows_arm64
var FS embed.FS
