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

// Package openfile implements the kernel-side open-file instance (spec
// §3/§4.A): one vnode handle, its access flags, its seek offset, and the
// lock protecting both.
package openfile

import (
	"sync"

	"github.com/os161go/kernel/vnode"
)

// OpenFile is shared between every file descriptor slot that refers to it
// (dup2, fork); the File Table holds references, never copies.
//
// INVARIANT: Vnode != nil
// INVARIANT: Offset >= 0 at every quiescent moment
// INVARIANT: Offset is only mutated while mu is held
type OpenFile struct {
	Vnode vnode.Node
	Flags vnode.OpenFlags

	mu     sync.Mutex
	offset int64 // GUARDED_BY(mu)
}

// New creates an OpenFile over vn with the given flags and offset 0;
// callers that need O_APPEND semantics set the offset afterward via
// SetOffset, before the OpenFile is visible to more than one goroutine.
func New(vn vnode.Node, flags vnode.OpenFlags) *OpenFile {
	return &OpenFile{Vnode: vn, Flags: flags}
}

// Lock acquires the OpenFile's lock. Callers must follow the table-lock
// before OpenFile-lock ordering from spec §5.
func (of *OpenFile) Lock() { of.mu.Lock() }

// Unlock releases the OpenFile's lock.
func (of *OpenFile) Unlock() { of.mu.Unlock() }

// Offset returns the current seek offset. Callers must hold the lock.
func (of *OpenFile) Offset() int64 { return of.offset }

// SetOffset sets the seek offset. Callers must hold the lock.
func (of *OpenFile) SetOffset(v int64) { of.offset = v }

// AddOffset advances the seek offset by delta. Callers must hold the lock.
func (of *OpenFile) AddOffset(delta int64) { of.offset += delta }

// Destroy releases resources owned directly by the OpenFile. The caller
// is responsible for having already called Vnode.Close when this was the
// last file-table reference to it — Destroy itself never touches the
// vnode, mirroring openfile_destroy in the source this was distilled
// from, which frees the struct but never calls vfs_close.
func (of *OpenFile) Destroy() {}
