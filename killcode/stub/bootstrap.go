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

// Package stub implements the launcher stub: the code materialized
// binary-identical into every assembled launcher's leading segment,
// which unpacks and supervises the base and overload payloads at
// runtime. It is platform-dispatched (linux.go, darwin.go, windows.go)
// on top of the OS-agnostic health evaluation and supervisor loop
// defined here.
package stub

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/krishna-kush/killcode/pkg/healthregion"
	"github.com/krishna-kush/killcode/pkg/klog"
)

// healthCheckInterval is how often the supervisor polls the health
// region and base liveness.
const healthCheckInterval = 5 * time.Second

// overloadKillWaitDuration is how long the supervisor waits for
// overload to act on a signaled kill request before falling back to
// killing base directly.
const overloadKillWaitDuration = 15 * time.Second

// forceKillDelay separates a SIGTERM from the SIGKILL that follows it
// on POSIX targets.
const forceKillDelay = 100 * time.Millisecond

// Outcome is the result of one health evaluation pass.
type Outcome int

// Recognized outcomes, in the precedence order evaluateHealth checks
// them.
const (
	OutcomeOK Outcome = iota
	OutcomeGracePeriodExceeded
	OutcomeNetworkFailureThreshold
	OutcomeOverloadRequestedKill
	OutcomeHeartbeatLost
)

// HealthCheckResult carries an Outcome plus whatever measurements
// produced it, for logging.
type HealthCheckResult struct {
	Outcome          Outcome
	TimeSinceSuccess int64
	GracePeriod      uint32
	Failures         int32
	Threshold        uint32
}

// currentTime is the Unix timestamp evaluateHealth and the health
// region's Init compare against.
func currentTime() int64 {
	return time.Now().Unix()
}

// notifyReady pings systemd that startup has finished, for a launcher
// deployed as a Type=notify unit. SdNotify is a no-op (returns false,
// nil) when NOTIFY_SOCKET isn't set, so this is harmless when the
// stub isn't running under systemd at all.
func notifyReady() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		klog.Warningf("systemd ready notification failed: %v", err)
	}
}

// notifyWatchdog pings systemd's watchdog keepalive. Called on every
// healthy supervisor poll so a WatchdogSec= unit doesn't restart the
// launcher out from under a live base process.
func notifyWatchdog() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		klog.Warningf("systemd watchdog notification failed: %v", err)
	}
}

// shouldEnableHealthMonitoring reports whether the supervisor thread
// and shared health region are worth setting up at all: sync mode
// blocks base until overload's exit code is known, so there is
// nothing left to supervise once base starts, and a policy with no
// grace period and no failure threshold has no triggers to evaluate.
func shouldEnableHealthMonitoring(syncMode bool, gracePeriod, networkFailureKillCount uint32) bool {
	return !syncMode && (gracePeriod > 0 || networkFailureKillCount > 0)
}

// evaluateHealth inspects region against the configured policy and
// reports what action, if any, the supervisor should take. Checks run
// in a fixed precedence: a stalled grace period outranks a network
// failure threshold, which outranks an explicit kill request, which
// outranks a lost heartbeat.
func evaluateHealth(region *healthregion.Region, gracePeriod, networkFailureKillCount uint32) HealthCheckResult {
	now := currentTime()
	timeSinceSuccess := now - region.LastSuccess()

	if gracePeriod > 0 && timeSinceSuccess > int64(gracePeriod) {
		return HealthCheckResult{
			Outcome:          OutcomeGracePeriodExceeded,
			TimeSinceSuccess: timeSinceSuccess,
			GracePeriod:      gracePeriod,
		}
	}

	failures := region.ConsecutiveFailures()
	if networkFailureKillCount > 0 && failures >= int32(networkFailureKillCount) {
		return HealthCheckResult{
			Outcome:   OutcomeNetworkFailureThreshold,
			Failures:  failures,
			Threshold: networkFailureKillCount,
		}
	}

	if region.ShouldKillBase() {
		return HealthCheckResult{Outcome: OutcomeOverloadRequestedKill}
	}

	if !region.IsAlive() {
		return HealthCheckResult{Outcome: OutcomeHeartbeatLost}
	}

	return HealthCheckResult{Outcome: OutcomeOK}
}
