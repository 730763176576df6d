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

// Package sysfile implements the file syscalls of spec §4.D: open, close,
// read, write, lseek, dup2, chdir, __getcwd. Each drives the OpenFile,
// FileTable and vnode.FS collaborators; none of them touch a process's
// address space or the process table.
package sysfile

import (
	"golang.org/x/net/context"

	"github.com/os161go/kernel/filetable"
	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/kernlog"
	"github.com/os161go/kernel/openfile"
	"github.com/os161go/kernel/proc"
	"github.com/os161go/kernel/vnode"
)

// DefaultCreateMode is the mode sys_open passes VFS when a new file is
// created and the caller didn't otherwise specify one (spec §4.D: "mode
// 0664").
const DefaultCreateMode = 0o664

// validateOpenFlags rejects, with EINVAL and before ever reaching VFS, an
// access mode other than read-only, write-only or read-write, and
// O_APPEND combined with read-only. Every other combination of O_CREAT,
// O_EXCL, O_TRUNC and O_APPEND is passed through to VFS unchecked.
func validateOpenFlags(flags vnode.OpenFlags) error {
	access := flags.AccessMode()
	if access != vnode.ORDONLY && access != vnode.OWRONLY && access != vnode.ORDWR {
		return kernerr.EINVAL
	}
	if flags&vnode.OAPPEND != 0 && access == vnode.ORDONLY {
		return kernerr.EINVAL
	}
	return nil
}

// Open implements sys_open: resolves path against p.Cwd, opens it
// through fs with the given flags, and installs the result at the
// lowest free descriptor >= 3 (spec §4.D).
func Open(ctx context.Context, p *proc.Process, fs vnode.FS, path string, flags vnode.OpenFlags) (int, error) {
	if err := validateOpenFlags(flags); err != nil {
		return -1, err
	}

	vn, err := fs.Open(ctx, path, flags, DefaultCreateMode, p.Cwd)
	if err != nil {
		kernlog.Errorf("sys_open", err)
		return -1, err
	}

	of := openfile.New(vn, flags)

	if flags&vnode.OAPPEND != 0 {
		stat, err := vn.Stat(ctx)
		if err != nil {
			vn.Close(ctx)
			return -1, err
		}
		of.SetOffset(stat.Size)
	}

	fd, err := p.FileTable.InsertLowest(of)
	if err != nil {
		vn.Close(ctx)
		return -1, err
	}
	return fd, nil
}

// Close implements sys_close: removes fd from the table and releases the
// vnode reference. A second close of the same fd fails with EBADF, the
// idempotent-safety property spec §4.D calls for.
func Close(ctx context.Context, p *proc.Process, fd int) error {
	ft := p.FileTable
	ft.Lock()
	of, err := ft.GetLocked(fd)
	if err != nil {
		ft.Unlock()
		return err
	}
	if err := ft.RemoveLocked(fd); err != nil {
		ft.Unlock()
		return err
	}
	ft.Unlock()

	return of.Vnode.Close(ctx)
}

// lockFD resolves fd to its OpenFile, following the table-lock-before-
// OpenFile-lock prologue common to read/write/lseek (spec §4.D).
func lockFD(ft *filetable.FileTable, fd int) (*openfile.OpenFile, error) {
	ft.Lock()
	of, err := ft.GetLocked(fd)
	if err != nil {
		ft.Unlock()
		return nil, err
	}
	of.Lock()
	ft.Unlock()
	return of, nil
}

// Read implements sys_read.
func Read(ctx context.Context, p *proc.Process, fd int, n int) ([]byte, error) {
	of, err := lockFD(p.FileTable, fd)
	if err != nil {
		return nil, err
	}
	defer of.Unlock()

	if of.Flags.AccessMode() == vnode.OWRONLY {
		return nil, kernerr.EBADF
	}

	buf := &vnode.IOBuf{Bytes: make([]byte, n)}
	read, err := of.Vnode.Read(ctx, buf, of.Offset())
	if err != nil {
		return nil, err
	}
	of.AddOffset(int64(read))
	return buf.Bytes[:read], nil
}

// Write implements sys_write.
func Write(ctx context.Context, p *proc.Process, fd int, data []byte) (int, error) {
	of, err := lockFD(p.FileTable, fd)
	if err != nil {
		return -1, err
	}
	defer of.Unlock()

	if of.Flags.AccessMode() == vnode.ORDONLY {
		return -1, kernerr.EBADF
	}

	buf := &vnode.IOBuf{Bytes: data}
	written, err := of.Vnode.Write(ctx, buf, of.Offset())
	if err != nil {
		return -1, err
	}
	of.AddOffset(int64(written))
	return written, nil
}

// Lseek implements sys_lseek: the only file syscall returning a 64-bit
// value (spec §4.D; ABI encoding lives in package trapframe).
func Lseek(ctx context.Context, p *proc.Process, fd int, pos int64, whence vnode.Whence) (int64, error) {
	of, err := lockFD(p.FileTable, fd)
	if err != nil {
		return -1, err
	}
	defer of.Unlock()

	if !of.Vnode.IsSeekable() {
		return -1, kernerr.ESPIPE
	}

	var newOffset int64
	switch whence {
	case vnode.SeekSet:
		newOffset = pos
	case vnode.SeekCur:
		newOffset = of.Offset() + pos
	case vnode.SeekEnd:
		stat, err := of.Vnode.Stat(ctx)
		if err != nil {
			return -1, err
		}
		newOffset = stat.Size + pos
	default:
		return -1, kernerr.EINVAL
	}

	if newOffset < 0 {
		return -1, kernerr.EINVAL
	}

	of.SetOffset(newOffset)
	return newOffset, nil
}

// Dup2 implements sys_dup2: oldfd==newfd is a documented no-op success
// (spec §4.D S3); otherwise the table lock is held across the whole
// operation, since the slot-membership mutation it performs (closing an
// occupant, aliasing a new one) must be atomic with respect to other
// table operations.
func Dup2(ctx context.Context, p *proc.Process, oldfd, newfd int) (int, error) {
	if oldfd == newfd {
		if _, err := p.FileTable.Get(oldfd); err != nil {
			return -1, err
		}
		return newfd, nil
	}

	ft := p.FileTable
	ft.Lock()
	defer ft.Unlock()

	of, err := ft.GetLocked(oldfd)
	if err != nil {
		return -1, err
	}

	if occupant, err := ft.GetLocked(newfd); err == nil {
		if err := occupant.Vnode.Close(ctx); err != nil {
			return -1, err
		}
		if err := ft.RemoveLocked(newfd); err != nil {
			return -1, err
		}
	}

	of.Vnode.IncRef()
	if err := ft.InsertAtLocked(newfd, of); err != nil {
		return -1, err
	}
	return newfd, nil
}

// Chdir implements sys_chdir: delegates path resolution to VFS and
// replaces p.Cwd with the result.
func Chdir(ctx context.Context, p *proc.Process, fs vnode.FS, path string) error {
	dir, err := fs.Chdir(ctx, path, p.Cwd)
	if err != nil {
		return err
	}
	p.Cwd = dir
	return nil
}

// Getcwd implements sys___getcwd.
func Getcwd(ctx context.Context, p *proc.Process, fs vnode.FS, bufLen int) ([]byte, error) {
	buf := &vnode.IOBuf{Bytes: make([]byte, bufLen)}
	n, err := fs.Getcwd(ctx, p.Cwd, buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes[:n], nil
}
