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

//go:build linux || darwin

package stub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu          sync.Mutex
	alive       bool
	terminated  []int
	killed      []int
}

func (f *fakeController) IsAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeController) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeController) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	return nil
}

func TestSupervisorKillsBaseOnHeartbeatLost(t *testing.T) {
	region := newTestRegion(t)
	region.SetAlive(false)

	controller := &fakeController{alive: true}
	sup := &Supervisor{Region: region, Controller: controller}
	sup.BasePID.Store(4242)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(healthCheckInterval + 2*time.Second):
		t.Fatal("supervisor did not return after detecting heartbeat loss")
	}

	controller.mu.Lock()
	defer controller.mu.Unlock()
	require.Equal(t, []int{4242}, controller.terminated)
	require.Equal(t, []int{4242}, controller.killed)
}

func TestSupervisorStopsOnContextCancel(t *testing.T) {
	region := newTestRegion(t)
	controller := &fakeController{alive: true}
	sup := &Supervisor{Region: region, Controller: controller}
	sup.BasePID.Store(4242)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop after context cancellation")
	}

	controller.mu.Lock()
	defer controller.mu.Unlock()
	require.Empty(t, controller.terminated, "canceled supervisor should not have taken a kill action")
}

func TestSupervisorIdlesUntilBasePIDIsSet(t *testing.T) {
	region := newTestRegion(t)
	controller := &fakeController{alive: false} // IsAlive(0) would end the loop at the first tick if checked
	sup := &Supervisor{Region: region, Controller: controller}

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("supervisor returned before a base pid was ever set")
	case <-time.After(healthCheckInterval + time.Second):
	}

	controller.mu.Lock()
	require.Empty(t, controller.terminated)
	controller.mu.Unlock()
}
