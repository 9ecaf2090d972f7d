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

// The killcode-stub binary is never run directly by a user: it is the
// prebuilt artifact staged into stubs/catalog/ and prepended ahead of
// a base and overload payload by pkg/assembler. At launch time it
// reads its own on-disk image, locates the footer appended after its
// own code, and supervises the two payloads described there.
package main

import (
	"os"

	"github.com/krishna-kush/killcode/killcode/stub"
	"github.com/krishna-kush/killcode/pkg/footer"
	"github.com/krishna-kush/killcode/pkg/klog"
)

func main() {
	self, err := os.Executable()
	if err != nil {
		klog.Errorf("resolving own executable path: %v", err)
		os.Exit(1)
	}

	image, err := os.ReadFile(self)
	if err != nil {
		klog.Errorf("reading own image: %v", err)
		os.Exit(1)
	}

	ftr, base, overload, err := footer.ExtractFromImage(image)
	if err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}

	platform := stub.NewPlatform()
	exitCode, err := stub.Run(platform, base, overload, ftr)
	if err != nil {
		klog.Errorf("%v", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
