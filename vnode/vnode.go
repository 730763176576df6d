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

// Package vnode is the VFS collaborator contract named in spec §6: the
// boundary the file syscalls (open/close/read/write/lseek/chdir/getcwd)
// drive, but never implement themselves. A concrete backend lives in
// vnode/hostfs.
package vnode

import (
	"golang.org/x/net/context"
)

// ConsoleDevice is the literal device path the stdio bootstrap opens
// three times (spec §6).
const ConsoleDevice = "con:"

// OpenFlags mirror the open(2) flag bits the syscall layer accepts (spec
// §6). They're plain ints rather than golang.org/x/sys/unix constants so a
// backend can be hosted on any platform's real flag values underneath.
type OpenFlags int

const (
	ORDONLY OpenFlags = 0
	OWRONLY OpenFlags = 1
	ORDWR   OpenFlags = 2

	OCREAT OpenFlags = 0o100
	OEXCL  OpenFlags = 0o200
	OTRUNC OpenFlags = 0o1000
	OAPPEND OpenFlags = 0o2000
)

// AccessMode isolates the low two bits of OpenFlags: read-only,
// write-only, or read-write.
func (f OpenFlags) AccessMode() OpenFlags { return f & 0o3 }

// Whence values for Seek, matching spec §6.
type Whence int

const (
	SeekSet Whence = 0
	SeekCur Whence = 1
	SeekEnd Whence = 2
)

// Stat is the subset of VOP_STAT the syscall layer consumes: only the
// size, needed to compute EOF-relative offsets for O_APPEND and
// SEEK_END.
type Stat struct {
	Size int64
}

// IOBuf describes an I/O transfer as a kernel-side byte slice: its length
// is the transfer size. It plays the role of the uio/iovec pair in spec
// §6 — collapsed to a single flat buffer because this core never depends
// on scatter/gather; copying to or from user memory happens outside it.
type IOBuf struct {
	Bytes []byte
}

// Node is one open vnode: a handle to a VFS-level file or device, shared
// (and refcounted) exactly as spec §3 describes — the same Node may be
// referenced by many OpenFiles (distinct offsets) or, via VOP_INCREF, by
// more than one OpenFile that will come to share an offset.
//
// Implementations must be safe for concurrent use: IncRef/Close may race
// with Read/Write/Stat from other descriptors open on the same node.
type Node interface {
	Read(ctx context.Context, buf *IOBuf, offset int64) (n int, err error)
	Write(ctx context.Context, buf *IOBuf, offset int64) (n int, err error)
	Stat(ctx context.Context) (Stat, error)
	IsSeekable() bool

	// IncRef bumps the VFS-level reference count (VOP_INCREF), used by
	// dup2 when aliasing an existing OpenFile's vnode into another slot.
	IncRef()

	// Close releases one reference (vfs_close); the underlying resource
	// is reclaimed when the count reaches zero.
	Close(ctx context.Context) error
}

// Dir is a Node that also names its own path, the way a directory vnode
// used as a process's current working directory must be able to answer
// __getcwd without the VFS keeping any process-indexed state of its own.
type Dir interface {
	Node
	Path() string
}

// FS is the rest of the VFS contract named in spec §6: opening a path into
// a Node, and the directory-relative operations chdir/getcwd drive.
// Current-working-directory state lives in the calling Process (spec §3),
// not here, so every path-relative call takes the caller's cwd explicitly —
// nil means "resolve from the root".
type FS interface {
	Open(ctx context.Context, path string, flags OpenFlags, mode uint32, cwd Dir) (Node, error)
	Chdir(ctx context.Context, path string, cwd Dir) (Dir, error)
	Getcwd(ctx context.Context, cwd Dir, buf *IOBuf) (n int, err error)
}
