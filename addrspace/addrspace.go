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

// Package addrspace is the address-space collaborator contract named in
// spec §6 (as_create, as_copy, as_activate, as_deactivate, as_destroy,
// as_define_stack, load_elf): out of scope for the core itself, but
// needed as an interface so fork/execv have something to drive.
package addrspace

import (
	"golang.org/x/net/context"

	"github.com/os161go/kernel/vnode"
)

// StackTop is the address a freshly defined user stack's pointer starts
// at, matching the convention a MIPS os161 port uses (the top of the
// fixed-size user stack region, growing down).
const StackTop = 0x7ffff000

// AddrSpace is one process's user-memory handle: opaque to the syscall
// core, which only ever creates, copies, (de)activates, destroys it, or
// asks it to load a program and lay out a stack.
type AddrSpace interface {
	// Activate installs this address space as the one the CPU currently
	// translates user addresses through.
	Activate(ctx context.Context) error

	// Deactivate is the inverse of Activate; called before switching away
	// from this address space (execv deactivates the old one before
	// activating its replacement).
	Deactivate(ctx context.Context) error

	// Copy returns a deep copy of this address space (as_copy), the
	// fork(2) contract (spec §4.F step 2).
	Copy(ctx context.Context) (AddrSpace, error)

	// Destroy releases all resources owned by this address space.
	Destroy(ctx context.Context) error

	// DefineStack carves out the fixed-size user stack region and returns
	// the initial stack pointer (as_define_stack).
	DefineStack(ctx context.Context) (sp uint32, err error)

	// LoadELF loads the program image named by vn into this address
	// space and returns its entry point (load_elf).
	LoadELF(ctx context.Context, vn vnode.Node) (entry uint32, err error)

	// CopyOutBytes writes data into this address space at addr, standing
	// in for copyout/copyoutstr: the execv argv/argc stack layout and the
	// waitpid status copy-out both go through an equivalent of this in a
	// real kernel, but this core only ever needs it on the reference
	// backend since there's no real user address space underneath.
	CopyOutBytes(ctx context.Context, addr uint32, data []byte) error
}

// Factory creates a fresh, empty AddrSpace (as_create).
type Factory func() (AddrSpace, error)
