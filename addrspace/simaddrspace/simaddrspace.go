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

// Package simaddrspace is the reference addrspace.AddrSpace backend: user
// memory modeled as a single growable byte arena rather than a real
// page table, the way hostfs backs a vnode with one real file instead of
// a disk driver. It exists to exercise fork's as_copy and execv's
// load_elf/as_define_stack end to end (spec §8 S5/S6) without a real MMU
// underneath.
package simaddrspace

import (
	"github.com/jacobsa/syncutil"
	"golang.org/x/net/context"

	"github.com/os161go/kernel/addrspace"
	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/vnode"
)

// StackSize is the fixed size of the simulated user stack region.
const StackSize = 64 * 1024

// SimAddrSpace is a flat byte arena standing in for a process's user
// memory: one region for the loaded program image, one fixed-size region
// for the stack.
//
// INVARIANT: len(stack) == StackSize once DefineStack has run; nil before.
type SimAddrSpace struct {
	mu syncutil.InvariantMutex

	active  bool    // GUARDED_BY(mu)
	image   []byte  // GUARDED_BY(mu); the loaded program, a copy of the vnode's bytes
	stack   []byte  // GUARDED_BY(mu)
	entry   uint32  // GUARDED_BY(mu)
}

// New returns an empty SimAddrSpace (as_create).
func New() (addrspace.AddrSpace, error) {
	as := &SimAddrSpace{}
	as.mu = syncutil.NewInvariantMutex(as.checkInvariants)
	return as, nil
}

func (as *SimAddrSpace) checkInvariants() {
	if as.stack != nil && len(as.stack) != StackSize {
		panic("simaddrspace: stack region has the wrong size")
	}
}

// Activate implements addrspace.AddrSpace.
func (as *SimAddrSpace) Activate(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.active = true
	return nil
}

// Deactivate implements addrspace.AddrSpace.
func (as *SimAddrSpace) Deactivate(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.active = false
	return nil
}

// Copy implements addrspace.AddrSpace: a full deep copy of the image and
// stack regions, matching as_copy's "deep copy of user memory" contract
// (spec §4.F step 2).
func (as *SimAddrSpace) Copy(ctx context.Context) (addrspace.AddrSpace, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	dst := &SimAddrSpace{entry: as.entry}
	if as.image != nil {
		dst.image = append([]byte(nil), as.image...)
	}
	if as.stack != nil {
		dst.stack = append([]byte(nil), as.stack...)
	}
	dst.mu = syncutil.NewInvariantMutex(dst.checkInvariants)
	return dst, nil
}

// Destroy implements addrspace.AddrSpace.
func (as *SimAddrSpace) Destroy(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.image = nil
	as.stack = nil
	return nil
}

// DefineStack implements addrspace.AddrSpace: carves out a fresh,
// zeroed StackSize-byte region and returns the conventional top-of-stack
// pointer.
func (as *SimAddrSpace) DefineStack(ctx context.Context) (uint32, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.stack = make([]byte, StackSize)
	return addrspace.StackTop, nil
}

// LoadELF implements addrspace.AddrSpace: reads vn's entire contents into
// the image region. There is no real ELF parsing here — the entry point
// is always 0, the offset a flat binary loaded at its own start would use
// on this simulated target.
func (as *SimAddrSpace) LoadELF(ctx context.Context, vn vnode.Node) (uint32, error) {
	stat, err := vn.Stat(ctx)
	if err != nil {
		return 0, err
	}

	buf := &vnode.IOBuf{Bytes: make([]byte, stat.Size)}
	if _, err := vn.Read(ctx, buf, 0); err != nil {
		return 0, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	as.image = buf.Bytes
	as.entry = 0
	return as.entry, nil
}

// CopyOutBytes implements addrspace.AddrSpace: writes data into the stack
// region at addr, the copyout primitive execv's argv layout relies on.
func (as *SimAddrSpace) CopyOutBytes(ctx context.Context, addr uint32, data []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.stack == nil || addr < addrspace.StackTop-StackSize || addr >= addrspace.StackTop {
		return kernerr.EFAULT
	}
	off := addr - (addrspace.StackTop - StackSize)
	if int(off)+len(data) > len(as.stack) {
		return kernerr.EFAULT
	}
	copy(as.stack[off:], data)
	return nil
}
