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
	"embed"
	"fmt"
	"strings"

	"github.com/krishna-kush/killcode/pkg/binaryid"
	stubcatalog "github.com/krishna-kush/killcode/stubs/catalog"
)

// Catalog resolves a target platform to the stub/supervisor binary the
// assembler should prepend to a launcher for that platform.
type Catalog interface {
	Stub(info binaryid.Info) ([]byte, error)
}

// embeddedCatalog serves stubs baked into the binary at build time via
// go:embed. This is the catalog production builds use.
type embeddedCatalog struct {
	fsys embed.FS
	root string
}

// DefaultCatalog is the catalog backed by the binary's own embedded
// stub tree (stubs/catalog/, populated by the release pipeline before
// this module is compiled).
var DefaultCatalog Catalog = &embeddedCatalog{fsys: stubcatalog.FS, root: ""}

func catalogKey(info binaryid.Info) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(info.OS.String()), archSlug(info.Arch))
}

func archSlug(a binaryid.Arch) string {
	switch a {
	case binaryid.ArchX86:
		return "x86"
	case binaryid.ArchX86_64:
		return "x86_64"
	case binaryid.ArchARM:
		return "arm"
	case binaryid.ArchAArch64:
		return "arm64"
	default:
		return "unknown"
	}
}

func (c *embeddedCatalog) Stub(info binaryid.Info) ([]byte, error) {
	key := catalogKey(info)
	if info.OS == binaryid.OSMacOS {
		key = strings.Replace(key, "macos", "darwin", 1)
	}
	name := key + "/stub"
	if c.root != "" {
		name = c.root + "/" + name
	}
	if info.OS == binaryid.OSWindows {
		name += ".exe"
	}
	data, err := c.fsys.ReadFile(name)
	if err != nil {
		return nil, &StubNotFoundError{Info: info}
	}
	return data, nil
}
