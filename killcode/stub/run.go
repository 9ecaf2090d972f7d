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

package stub

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/krishna-kush/killcode/pkg/footer"
	"github.com/krishna-kush/killcode/pkg/healthregion"
	"github.com/krishna-kush/killcode/pkg/klog"
)

// Platform is the materialize-and-run primitive each target OS
// implements: linux.go uses memfd_create plus /proc/self/fd exec,
// darwin.go writes a temp file and ad-hoc codesigns it, windows.go
// writes a temp file and starts it through os/exec (CreateProcess).
type Platform interface {
	// Spawn materializes data as a runnable image named name and
	// starts it, returning the running process.
	Spawn(data []byte, name string) (*os.Process, error)
	// Controller returns the ProcessController this platform uses to
	// probe and terminate pids, shared with the health Supervisor.
	Controller() ProcessController
}

// VerificationFailedError is returned in sync mode when overload exits
// with a non-zero status, aborting the launch before base ever runs.
type VerificationFailedError struct {
	ExitCode int
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("overload verification failed with exit code %d", e.ExitCode)
}

// Run unpacks base and overload from a launcher image (per ftr) and
// carries out the supervision contract: in sync mode, overload must
// exit 0 before base starts; in async mode, overload runs alongside
// base under the health Supervisor. It returns base's exit code.
func Run(platform Platform, base, overload []byte, ftr footer.Footer) (int, error) {
	syncMode := ftr.SyncMode == footer.Sync

	var region *healthregion.Region
	var regionName string
	if shouldEnableHealthMonitoring(syncMode, ftr.GracePeriodSeconds, ftr.NetworkFailureKillCount) {
		pid := os.Getpid()
		r, name, err := healthregion.CreateShared(pid, currentTime())
		if err != nil {
			klog.Warningf("Warning: Failed to create shared memory: %v", err)
		} else {
			region = r
			regionName = name
			os.Setenv(healthregion.EnvVar, regionName)
			klog.Infof("Health monitoring enabled: %s", regionName)
		}
	}
	if region != nil {
		defer region.Close()
	}

	overloadProc, err := platform.Spawn(overload, "overload")
	if err != nil {
		klog.Errorf("Failed to start overload binary: %v", err)
		return -1, fmt.Errorf("starting overload: %w", err)
	}

	if syncMode {
		klog.Infof("Sync mode: Waiting for overload verification (PID: %d)...", overloadProc.Pid)
		state, waitErr := overloadProc.Wait()
		if waitErr != nil {
			return -1, fmt.Errorf("waiting for overload: %w", waitErr)
		}
		if code := state.ExitCode(); code != 0 {
			klog.Errorf("Overload verification failed (exit code: %d)", code)
			return -1, &VerificationFailedError{ExitCode: code}
		}
		klog.Infof("Overload verification successful")
	} else {
		klog.Infof("Async mode: Overload running in background (PID: %d)", overloadProc.Pid)
	}

	// sup, when running, is coordinated through an errgroup rather than
	// a bare "go sup.Run()": canceling ctx once base has been reaped
	// below stops the supervisor immediately instead of leaving it
	// polling for up to healthCheckInterval after there is nothing left
	// to supervise.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var sup *Supervisor
	if !syncMode && region != nil && (ftr.GracePeriodSeconds > 0 || ftr.NetworkFailureKillCount > 0) {
		sup = &Supervisor{
			Region:                  region,
			Controller:              platform.Controller(),
			GracePeriodSeconds:      ftr.GracePeriodSeconds,
			NetworkFailureKillCount: ftr.NetworkFailureKillCount,
		}
		g.Go(func() error {
			sup.Run(gctx)
			return nil
		})
	}

	klog.Infof("Starting base binary...")
	baseProc, err := platform.Spawn(base, "base")
	if err != nil {
		klog.Errorf("Failed to start base binary: %v", err)
		cancel()
		terminateOverload(platform, overloadProc)
		return -1, fmt.Errorf("starting base: %w", err)
	}
	if sup != nil {
		sup.BasePID.Store(int32(baseProc.Pid))
	}
	notifyReady()

	state, waitErr := baseProc.Wait()
	exitCode := -1
	if waitErr == nil {
		exitCode = state.ExitCode()
	} else {
		klog.Warningf("waitpid failed for base: %v", waitErr)
	}

	cancel()
	g.Wait()

	if !syncMode {
		klog.Infof("Base binary completed, terminating overload (PID: %d)", overloadProc.Pid)
		terminateOverload(platform, overloadProc)
	}

	klog.Infof("Base binary exited with code: %d", exitCode)
	return exitCode, nil
}

// terminateOverload sends SIGTERM (or its platform equivalent), gives
// overload up to a second to exit on its own — polling with a
// short exponential backoff rather than a single flat sleep, so a
// process that exits quickly doesn't cost the full grace window —
// then escalates to a forced kill and reaps it.
func terminateOverload(platform Platform, p *os.Process) {
	controller := platform.Controller()
	if err := controller.Terminate(p.Pid); err != nil {
		return
	}

	// Exit is observed through Wait, which reaps the child: a liveness
	// probe alone keeps reporting an exited but unreaped child as alive.
	exited := make(chan struct{})
	go func() {
		p.Wait()
		close(exited)
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = time.Second
	stillAlive := backoff.Retry(func() error {
		select {
		case <-exited:
			return nil
		default:
			return fmt.Errorf("overload pid %d still alive", p.Pid)
		}
	}, bo) != nil

	if stillAlive {
		klog.Infof("Forcing SIGKILL on overload")
		controller.Kill(p.Pid)
	}
	<-exited
}
