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

// Package sysproc implements the process syscalls of spec §4.F: getpid,
// fork, _exit, waitpid, execv. Each drives the process table plus the
// address-space and kernel-thread collaborators.
package sysproc

import (
	"encoding/binary"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	"github.com/os161go/kernel/addrspace"
	"github.com/os161go/kernel/filetable"
	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/kernlog"
	"github.com/os161go/kernel/kthread"
	"github.com/os161go/kernel/proc"
	"github.com/os161go/kernel/trapframe"
	"github.com/os161go/kernel/vnode"
)

// Getpid implements sys_getpid.
func Getpid(p *proc.Process) int {
	return p.PID
}

// ChildMain is the simulated user-mode entry point a forked child runs
// on its own kernel thread: the stand-in for mips_usermode loading the
// cloned trap frame and resuming user execution, since this repo has no
// real MIPS user mode to return to. The dispatcher (or a test) supplies
// one to drive the child forward.
type ChildMain func(child *proc.Process, tf *trapframe.TrapFrame)

// Fork implements sys_fork (spec §4.F, the hardest operation). On
// success it has already started the child on its own kernel thread
// running childMain with a cloned trap frame observing retval=0,
// err_flag=0, and PC advanced past the syscall, and returns the child's
// PID to the parent. Any failure unwinds everything allocated so far.
func Fork(ctx context.Context, pt *proc.ProcessTable, parent *proc.Process, parentTF *trapframe.TrapFrame, childMain ChildMain) (int, error) {
	childAS, err := parent.AddrSpace.Copy(ctx)
	if err != nil {
		return -1, kernerr.ENOMEM
	}

	childFT := parent.FileTable.Copy()

	var childCwd vnode.Dir
	if parent.Cwd != nil {
		parent.Cwd.IncRef()
		childCwd = parent.Cwd
	}

	child := proc.New(parent.Name, parent.PID, childAS, childFT, childCwd, timeutil.RealClock())

	pid, err := pt.Allocate(child)
	if err != nil {
		if childCwd != nil {
			childCwd.Close(ctx)
		}
		childAS.Destroy(ctx)
		return -1, err
	}

	childTF := *parentTF
	trapframe.EncodeSuccess(&childTF, 0, false)

	kthread.Fork(child.Name, func() {
		childMain(child, &childTF)
	})

	kernlog.Get().Printf("sys_fork: pid %d forked pid %d", parent.PID, pid)
	return pid, nil
}

// Exit implements sys__exit (spec §4.F): releases every resource the
// process owns directly — open files, the cwd vnode, the address space —
// then latches the zombie state and wakes any waiter. Reaping (removing
// the PID from the table) is the waiter's job, not this function's,
// mirroring the source this was distilled from where the proc_destroy
// call following thread_exit() is unreachable dead code.
func Exit(ctx context.Context, p *proc.Process, status int32) {
	ft := p.FileTable
	ft.Lock()
	for fd := 0; fd < filetable.OpenMax; fd++ {
		of, err := ft.GetLocked(fd)
		if err != nil {
			continue
		}
		of.Vnode.Close(ctx)
		ft.RemoveLocked(fd)
	}
	ft.Unlock()

	if p.Cwd != nil {
		p.Cwd.Close(ctx)
	}
	if p.AddrSpace != nil {
		p.AddrSpace.Destroy(ctx)
	}

	p.Exit(status)
}

// Waitpid implements sys_waitpid: validates that pid names a child of
// the caller, blocks until it exits, then reaps it. options must be 0 —
// WNOHANG/WUNTRACED are not supported (spec §4.F/§5).
func Waitpid(ctx context.Context, pt *proc.ProcessTable, caller *proc.Process, pid int, options int32) (int, int32, error) {
	if options != 0 {
		return -1, 0, kernerr.EINVAL
	}

	child, err := pt.ValidityCheck(caller.PID, pid)
	if err != nil {
		return -1, 0, err
	}

	status := child.Wait(ctx)
	pt.Release(pid)
	return pid, status, nil
}

// Execv implements sys_execv (spec §4.F). On success it writes the new
// program's entry point and initial stack pointer (and argc/argv in the
// registers enter_new_process expects) directly into tf and returns nil —
// execv "does not return" through the normal (v0, a3) success path, so
// the dispatcher must not call trapframe.EncodeSuccess for this call. On
// any failure before the address-space switch commits, the previous
// address space is restored and tf is left untouched.
func Execv(ctx context.Context, p *proc.Process, fs vnode.FS, path string, argv []string, newAS addrspace.Factory, tf *trapframe.TrapFrame) error {
	vn, err := fs.Open(ctx, path, vnode.ORDONLY, 0, p.Cwd)
	if err != nil {
		return err
	}

	as, err := newAS()
	if err != nil {
		vn.Close(ctx)
		return kernerr.ENOMEM
	}

	oldAS := p.AddrSpace
	if err := oldAS.Deactivate(ctx); err != nil {
		vn.Close(ctx)
		return err
	}

	p.AddrSpace = as
	if err := as.Activate(ctx); err != nil {
		p.AddrSpace = oldAS
		oldAS.Activate(ctx)
		vn.Close(ctx)
		return err
	}

	entry, err := as.LoadELF(ctx, vn)
	vn.Close(ctx)
	if err != nil {
		p.AddrSpace = oldAS
		oldAS.Activate(ctx)
		return err
	}

	sp, err := as.DefineStack(ctx)
	if err != nil {
		p.AddrSpace = oldAS
		oldAS.Activate(ctx)
		return err
	}

	sp, argvAddr, err := layoutArgv(ctx, as, sp, argv)
	if err != nil {
		p.AddrSpace = oldAS
		oldAS.Activate(ctx)
		return err
	}

	// Commit point: the old address space is no longer reachable from the
	// process, so it's destroyed rather than restored from here on.
	oldAS.Destroy(ctx)

	tf.A0 = uint32(len(argv))
	tf.A1 = argvAddr
	tf.SP = sp
	tf.EPC = entry
	return nil
}

// layoutArgv writes argv onto the new stack below sp, null-terminated
// string by string, then a contiguous argv[] pointer array (argc entries
// plus a trailing NULL) below that, and returns the new stack pointer
// and the address of the pointer array.
func layoutArgv(ctx context.Context, as addrspace.AddrSpace, sp uint32, argv []string) (uint32, uint32, error) {
	ptrs := make([]uint32, len(argv)+1)

	cur := sp
	for i, s := range argv {
		b := append([]byte(s), 0)
		cur -= uint32(len(b))
		if err := as.CopyOutBytes(ctx, cur, b); err != nil {
			return 0, 0, err
		}
		ptrs[i] = cur
	}

	cur &^= 3 // word-align before the pointer array
	cur -= uint32(len(ptrs) * 4)
	cur &^= 3

	buf := make([]byte, len(ptrs)*4)
	for i, addr := range ptrs {
		binary.LittleEndian.PutUint32(buf[i*4:], addr)
	}
	if err := as.CopyOutBytes(ctx, cur, buf); err != nil {
		return 0, 0, err
	}

	return cur, cur, nil
}
