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

// Package healthregion implements the fixed-layout, process-shared
// memory region the overload payload and the stub's health supervisor
// exchange liveness and kill-intent through.
//
// Each field has exactly one writer (see spec §3); readers tolerate
// stale or torn values by treating the region as advisory. No lock is
// taken — the field layout is fixed at byte offsets so it is stable
// regardless of the host language's struct layout rules on either
// side of the boundary.
package healthregion

import (
	"sync/atomic"
	"unsafe"
)

// Field byte offsets, natural alignment, no padding assumptions
// exported beyond field order.
const (
	offLastSuccess         = 0  // i64
	offConsecutiveFailures = 8  // i32
	offIsAlive             = 12 // i32
	offShouldKillBase      = 16 // i32
	offParentRequestsKill  = 20 // i32

	// Size is the fixed byte length of the region.
	Size = 24
)

// EnvVar is the environment variable the stub sets to the region's
// platform name before the overload child spawns, and that the
// overload payload reads to locate it.
const EnvVar = "KILLCODE_HEALTH_SHM"

// Region is a handle onto the mapped shared memory. The zero value is
// not usable; construct one with CreateShared (stub side) or Open
// (overload side).
type Region struct {
	mem    []byte
	closer func() error
}

func newRegion(mem []byte, closer func() error) *Region {
	return &Region{mem: mem, closer: closer}
}

// Close unmaps the region and, on the creating side, unlinks its
// backing name. Safe to call once; errors are non-fatal by design
// (spec §7: failure to unlink shared memory is logged and ignored by
// callers, never escalated).
func (r *Region) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func (r *Region) i64(off int) *int64 {
	return (*int64)(unsafe.Pointer(&r.mem[off]))
}

func (r *Region) i32(off int) *int32 {
	return (*int32)(unsafe.Pointer(&r.mem[off]))
}

// Init sets the region to its post-creation default: alive, no
// failures, no kill requested in either direction, last_success now.
func (r *Region) Init(now int64) {
	atomic.StoreInt64(r.i64(offLastSuccess), now)
	atomic.StoreInt32(r.i32(offConsecutiveFailures), 0)
	atomic.StoreInt32(r.i32(offIsAlive), 1)
	atomic.StoreInt32(r.i32(offShouldKillBase), 0)
	atomic.StoreInt32(r.i32(offParentRequestsKill), 0)
}

// LastSuccess returns the overload-reported last-success timestamp
// (seconds since epoch). Written by the overload, read by the
// supervisor.
func (r *Region) LastSuccess() int64 { return atomic.LoadInt64(r.i64(offLastSuccess)) }

// SetLastSuccess is called by the overload payload to report liveness.
func (r *Region) SetLastSuccess(t int64) { atomic.StoreInt64(r.i64(offLastSuccess), t) }

// ConsecutiveFailures returns the overload-reported failure streak.
func (r *Region) ConsecutiveFailures() int32 {
	return atomic.LoadInt32(r.i32(offConsecutiveFailures))
}

// SetConsecutiveFailures is called by the overload payload.
func (r *Region) SetConsecutiveFailures(n int32) {
	atomic.StoreInt32(r.i32(offConsecutiveFailures), n)
}

// IsAlive returns the overload's heartbeat flag.
func (r *Region) IsAlive() bool { return atomic.LoadInt32(r.i32(offIsAlive)) != 0 }

// SetAlive is called by the overload payload on each heartbeat.
func (r *Region) SetAlive(alive bool) {
	atomic.StoreInt32(r.i32(offIsAlive), boolToI32(alive))
}

// ShouldKillBase returns whether the overload has asked the
// supervisor to terminate base.
func (r *Region) ShouldKillBase() bool {
	return atomic.LoadInt32(r.i32(offShouldKillBase)) != 0
}

// SetShouldKillBase is called by the overload payload.
func (r *Region) SetShouldKillBase(v bool) {
	atomic.StoreInt32(r.i32(offShouldKillBase), boolToI32(v))
}

// ParentRequestsKill returns whether the supervisor has asked the
// overload to terminate base itself before the supervisor's fallback
// kill fires.
func (r *Region) ParentRequestsKill() bool {
	return atomic.LoadInt32(r.i32(offParentRequestsKill)) != 0
}

// SetParentRequestsKill is called by the supervisor only.
func (r *Region) SetParentRequestsKill(v bool) {
	atomic.StoreInt32(r.i32(offParentRequestsKill), boolToI32(v))
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
