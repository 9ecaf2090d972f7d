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
	"sync/atomic"
	"time"

	"github.com/krishna-kush/killcode/pkg/healthregion"
	"github.com/krishna-kush/killcode/pkg/klog"
)

// ProcessController is the platform-specific half of supervision: how
// to probe a pid for liveness and how to end it. linux.go and
// darwin.go implement it with unix.Kill; windows.go implements it
// against OpenProcess/TerminateProcess.
type ProcessController interface {
	IsAlive(pid int) bool
	Terminate(pid int) error
	Kill(pid int) error
}

// Supervisor watches the shared health region populated by overload
// and kills base when the configured policy calls for it. It runs on
// its own goroutine, started only when shouldEnableHealthMonitoring
// allows it, and exits as soon as it takes a kill action or the base
// pid it's watching disappears.
type Supervisor struct {
	Region                  *healthregion.Region
	Controller              ProcessController
	GracePeriodSeconds      uint32
	NetworkFailureKillCount uint32

	// BasePID is set once base has been spawned; it stays 0 until
	// then, and the supervisor idles rather than probing pid 0.
	BasePID atomic.Int32
}

// Run polls the health region every healthCheckInterval until it
// either takes a terminal kill action, observes that base is no
// longer alive through the controller's own channel (e.g. Run's
// caller already reaped it), or ctx is canceled by Run's caller once
// base has already been reaped through the main supervision path. It
// is meant to run on its own goroutine, coordinated via an errgroup so
// the caller can tell it to stop instead of waiting out a stale poll
// interval after base has already exited.
func (s *Supervisor) Run(ctx context.Context) {
	klog.Infof("Health monitor started")
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		basePID := int(s.BasePID.Load())
		if basePID <= 0 {
			continue
		}
		if !s.Controller.IsAlive(basePID) {
			return
		}

		result := evaluateHealth(s.Region, s.GracePeriodSeconds, s.NetworkFailureKillCount)
		switch result.Outcome {
		case OutcomeOK:
			notifyWatchdog()
			continue
		case OutcomeGracePeriodExceeded:
			klog.Warningf("Grace period exceeded (%d > %d seconds), killing base", result.TimeSinceSuccess, result.GracePeriod)
			s.killBase(basePID)
			return
		case OutcomeNetworkFailureThreshold:
			klog.Warningf("Network failure threshold exceeded (%d/%d), signaling overload to kill parent", result.Failures, result.Threshold)
			s.Region.SetParentRequestsKill(true)
			select {
			case <-ctx.Done():
				return
			case <-time.After(overloadKillWaitDuration):
			}
			klog.Infof("Fallback: Killing base directly (overload didn't respond)")
			s.killBase(basePID)
			return
		case OutcomeOverloadRequestedKill:
			klog.Warningf("Overload requested base termination")
			s.killBase(basePID)
			return
		case OutcomeHeartbeatLost:
			klog.Warningf("Overload heartbeat lost, killing base")
			s.killBase(basePID)
			return
		}
	}
}

func (s *Supervisor) killBase(pid int) {
	if err := s.Controller.Terminate(pid); err != nil {
		klog.Warningf("terminating base pid %d: %v", pid, err)
	}
	time.Sleep(forceKillDelay)
	if !s.Controller.IsAlive(pid) {
		return
	}
	if err := s.Controller.Kill(pid); err != nil {
		klog.Warningf("killing base pid %d: %v", pid, err)
	}
}
