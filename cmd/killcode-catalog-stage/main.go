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

// The killcode-catalog-stage tool copies a cross-compiled
// cmd/killcode-stub binary into stubs/catalog/<os>_<arch>/ ahead of a
// release build, so pkg/assembler's embeddedCatalog has something real
// to embed. A release pipeline invokes this once per target after
// cross-compiling killcode-stub for that target; flock guards the
// shared catalog directory since several targets are typically staged
// concurrently by separate pipeline jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/krishna-kush/killcode/pkg/klog"
)

// lockRetryInterval is how often TryLockContext re-attempts the catalog
// lock while another stage invocation holds it.
const lockRetryInterval = 100 * time.Millisecond

// lockTimeout bounds the total wait for the catalog lock; a pipeline
// stage that can't acquire it in this window is almost certainly stuck
// rather than merely queued behind a normal copy.
const lockTimeout = 30 * time.Second

func main() {
	var (
		goos    = flag.String("os", "", "target GOOS (linux, darwin, windows)")
		arch    = flag.String("arch", "", "target slug (x86_64, arm64)")
		binPath = flag.String("binary", "", "path to the cross-compiled killcode-stub binary")
		root    = flag.String("catalog-root", "stubs/catalog", "catalog directory to stage into")
	)
	flag.Parse()

	if *goos == "" || *arch == "" || *binPath == "" {
		fmt.Fprintln(os.Stderr, "usage: killcode-catalog-stage -os=<goos> -arch=<slug> -binary=<path> [-catalog-root=dir]")
		os.Exit(2)
	}

	if err := stage(*root, *goos, *arch, *binPath); err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}
}

func stage(root, goos, arch, binPath string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating catalog root %s: %w", root, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	lock := flock.New(filepath.Join(root, ".catalog.lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("locking catalog root: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out waiting for catalog lock at %s", root)
	}
	defer lock.Unlock()

	targetDir := filepath.Join(root, goos+"_"+arch)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", targetDir, err)
	}

	name := "stub"
	if goos == "windows" {
		name = "stub.exe"
	}
	dest := filepath.Join(targetDir, name)

	if err := copyFile(binPath, dest); err != nil {
		return fmt.Errorf("staging %s into %s: %w", binPath, dest, err)
	}
	klog.Infof("Staged %s into %s", binPath, dest)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
