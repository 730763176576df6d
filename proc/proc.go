// Copyright 2015 Google Inc. All Rights Reserved.
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

// Package proc implements the process descriptor and the bounded,
// PID-indexed process table (spec §3/§4.E): allocation, lookup, parent/
// child validity checking, and the exit rendezvous a fork/waitpid pair
// drives.
package proc

import (
	"sync"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	"github.com/os161go/kernel/addrspace"
	"github.com/os161go/kernel/filetable"
	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/vnode"
)

// MaxProcs is MAX_PROC_NUM: the fixed capacity of the process table (spec
// §3). PID 0 is reserved, so the table holds MaxProcs-1 usable PIDs.
const MaxProcs = 200

// Process is one live or zombie process descriptor (spec §3).
//
// INVARIANT: PID is in [1, MaxProcs)
// INVARIANT: a zombie (Exited() == true) retains only enough state to
// answer waitpid: PID, exit code, exited. Everything else a live process
// owns (AddrSpace, FileTable, Cwd) must already have been released by the
// caller of Exit before it sets the flag.
type Process struct {
	PID       int
	ParentPID int
	Name      string

	AddrSpace addrspace.AddrSpace
	FileTable *filetable.FileTable

	// Cwd is the current working directory vnode, a shared (refcounted)
	// reference the same way an OpenFile's vnode is shared across fds.
	Cwd vnode.Dir

	Created time.Time

	exitMu   sync.Mutex
	exitCV   *sync.Cond
	exitCode int32
	exited   bool
}

// New creates a live Process descriptor, stamping Created from clock
// rather than calling time.Now() directly, the way memfs's inodes take a
// timeutil.Clock so tests can drive creation times deterministically with
// a timeutil.SimulatedClock. The caller installs it into a ProcessTable
// via Allocate, which assigns PID.
func New(name string, parentPID int, as addrspace.AddrSpace, ft *filetable.FileTable, cwd vnode.Dir, clock timeutil.Clock) *Process {
	p := &Process{
		Name:      name,
		ParentPID: parentPID,
		AddrSpace: as,
		FileTable: ft,
		Cwd:       cwd,
		Created:   clock.Now(),
	}
	p.exitCV = sync.NewCond(&p.exitMu)
	return p
}

// Exit latches the process as a zombie with the given status and wakes
// every waiter blocked in Wait (spec §4.F _exit / §9 "exit rendezvous").
// The caller is responsible for having already released AddrSpace,
// FileTable, and Cwd — Exit only flips the state machine.
func (p *Process) Exit(status int32) {
	p.exitMu.Lock()
	p.exitCode = status
	p.exited = true
	p.exitCV.Broadcast()
	p.exitMu.Unlock()
}

// Wait blocks until the process has exited, then returns its exit code.
// Safe for multiple concurrent waiters, though spec §4.F only ever drives
// this from a single parent.
func (p *Process) Wait(ctx context.Context) int32 {
	p.exitMu.Lock()
	defer p.exitMu.Unlock()
	for !p.exited {
		p.exitCV.Wait()
	}
	return p.exitCode
}

// Exited reports whether the process has latched its exit state.
func (p *Process) Exited() bool {
	p.exitMu.Lock()
	defer p.exitMu.Unlock()
	return p.exited
}

// ProcessTable is the bounded, PID-indexed arena of live and zombie
// processes (spec §3/§4.E).
//
// INVARIANT: len(slots) == MaxProcs
// INVARIANT: slots[0] == nil always (PID 0 is reserved)
type ProcessTable struct {
	mu syncutil.InvariantMutex

	slots   [MaxProcs]*Process // GUARDED_BY(mu)
	nextPID int                 // GUARDED_BY(mu); allocation hint, not authoritative
}

// NewTable returns an empty ProcessTable.
func NewTable() *ProcessTable {
	pt := &ProcessTable{nextPID: 1}
	pt.mu = syncutil.NewInvariantMutex(pt.checkInvariants)
	return pt
}

func (pt *ProcessTable) checkInvariants() {
	if pt.slots[0] != nil {
		panic("pid 0 occupied")
	}
	if pt.nextPID < 1 || pt.nextPID >= MaxProcs {
		panic("process table allocation hint out of range")
	}
}

// Allocate installs p at the lowest free PID at or after the allocation
// hint, wrapping once, and returns that PID. Returns ENPROC if the table
// is full.
func (pt *ProcessTable) Allocate(p *Process) (int, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	for i := 0; i < MaxProcs-1; i++ {
		pid := pt.nextPID + i
		if pid >= MaxProcs {
			pid -= MaxProcs - 1
		}
		if pid == 0 {
			continue
		}
		if pt.slots[pid] == nil {
			p.PID = pid
			pt.slots[pid] = p
			pt.nextPID = pid + 1
			if pt.nextPID >= MaxProcs {
				pt.nextPID = 1
			}
			return pid, nil
		}
	}
	return 0, kernerr.ENPROC
}

// Release removes pid from the table. The caller must have already
// reaped the process (waitpid has collected its status); this only
// clears the slot so the PID can be recycled.
func (pt *ProcessTable) Release(pid int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pid > 0 && pid < MaxProcs {
		pt.slots[pid] = nil
	}
}

// Lookup resolves pid to its Process, or ESRCH if absent.
func (pt *ProcessTable) Lookup(pid int) (*Process, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pid <= 0 || pid >= MaxProcs {
		return nil, kernerr.ESRCH
	}
	p := pt.slots[pid]
	if p == nil {
		return nil, kernerr.ESRCH
	}
	return p, nil
}

// ValidityCheck verifies that pid names a process and that it is
// callerPID's child, the precondition waitpid must check before blocking
// (spec §4.E/§4.F).
func (pt *ProcessTable) ValidityCheck(callerPID, pid int) (*Process, error) {
	if pid <= 0 {
		return nil, kernerr.EINVAL
	}
	child, err := pt.Lookup(pid)
	if err != nil {
		return nil, err
	}
	if child.ParentPID != callerPID {
		return nil, kernerr.ECHILD
	}
	return child, nil
}
