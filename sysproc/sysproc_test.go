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

package sysproc_test

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/os161go/kernel/addrspace/simaddrspace"
	"github.com/os161go/kernel/filetable"
	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/proc"
	"github.com/os161go/kernel/sysproc"
	"github.com/os161go/kernel/trapframe"
	"github.com/os161go/kernel/vnode"
)

func TestSysproc(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// A minimal vnode.FS exposing a single fixed "program" so execv has
// something to load.
////////////////////////////////////////////////////////////////////////

type fakeExecNode struct {
	image []byte
}

func (n *fakeExecNode) Read(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	k := copy(buf.Bytes, n.image[offset:])
	return k, nil
}
func (n *fakeExecNode) Write(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	return 0, kernerr.EINVAL
}
func (n *fakeExecNode) Stat(ctx context.Context) (vnode.Stat, error) {
	return vnode.Stat{Size: int64(len(n.image))}, nil
}
func (n *fakeExecNode) IsSeekable() bool                { return true }
func (n *fakeExecNode) IncRef()                         {}
func (n *fakeExecNode) Close(ctx context.Context) error { return nil }

type fakeExecFS struct{}

func (fs *fakeExecFS) Open(ctx context.Context, path string, flags vnode.OpenFlags, mode uint32, cwd vnode.Dir) (vnode.Node, error) {
	if path != "hello" {
		return nil, kernerr.ENOENT
	}
	return &fakeExecNode{image: []byte("program bytes")}, nil
}
func (fs *fakeExecFS) Chdir(ctx context.Context, path string, cwd vnode.Dir) (vnode.Dir, error) {
	return nil, kernerr.ENOSYS
}
func (fs *fakeExecFS) Getcwd(ctx context.Context, cwd vnode.Dir, buf *vnode.IOBuf) (int, error) {
	return 0, kernerr.ENOSYS
}

func newTestProcess(name string, parentPID int) *proc.Process {
	as, err := simaddrspace.New()
	AssertEq(nil, err)
	return proc.New(name, parentPID, as, filetable.New(), nil, timeutil.RealClock())
}

////////////////////////////////////////////////////////////////////////
// Suite
////////////////////////////////////////////////////////////////////////

type SysprocTest struct {
}

func init() { RegisterTestSuite(&SysprocTest{}) }

////////////////////////////////////////////////////////////////////////
// S5: fork + waitpid end to end.
////////////////////////////////////////////////////////////////////////

func (t *SysprocTest) ForkWaitpid() {
	ctx := context.Background()
	pt := proc.NewTable()

	parent := newTestProcess("parent", 0)
	_, err := pt.Allocate(parent)
	AssertEq(nil, err)

	parentTF := &trapframe.TrapFrame{EPC: 0x4000}

	childSawPID := make(chan int, 1)
	childMain := func(child *proc.Process, tf *trapframe.TrapFrame) {
		ExpectEq(0, tf.V0)
		ExpectEq(0, tf.A3)
		childSawPID <- child.PID
		sysproc.Exit(ctx, child, 7)
	}

	childPID, err := sysproc.Fork(ctx, pt, parent, parentTF, childMain)
	AssertEq(nil, err)

	select {
	case pid := <-childSawPID:
		ExpectEq(childPID, pid)
	case <-time.After(time.Second):
		AssertTrue(false, "childMain never ran")
	}

	gotPID, status, err := sysproc.Waitpid(ctx, pt, parent, childPID, 0)
	AssertEq(nil, err)
	ExpectEq(childPID, gotPID)
	ExpectEq(7, status)

	_, err = pt.Lookup(childPID)
	ExpectEq(kernerr.ESRCH, err)
}

func (t *SysprocTest) WaitpidRejectsNonChild() {
	ctx := context.Background()
	pt := proc.NewTable()

	parent := newTestProcess("parent", 0)
	_, err := pt.Allocate(parent)
	AssertEq(nil, err)
	unrelated := newTestProcess("unrelated", 0)
	_, err = pt.Allocate(unrelated)
	AssertEq(nil, err)

	_, _, err = sysproc.Waitpid(ctx, pt, parent, unrelated.PID, 0)
	ExpectEq(kernerr.ECHILD, err)
}

func (t *SysprocTest) WaitpidRejectsNonzeroOptions() {
	ctx := context.Background()
	pt := proc.NewTable()
	parent := newTestProcess("parent", 0)
	pt.Allocate(parent)

	_, _, err := sysproc.Waitpid(ctx, pt, parent, parent.PID, 1)
	ExpectEq(kernerr.EINVAL, err)
}

////////////////////////////////////////////////////////////////////////
// S6: execv against simaddrspace.
////////////////////////////////////////////////////////////////////////

func (t *SysprocTest) ExecvRewritesTrapFrame() {
	ctx := context.Background()
	p := newTestProcess("execer", 0)
	fs := &fakeExecFS{}

	tf := &trapframe.TrapFrame{EPC: 0x1234, V0: 99}

	err := sysproc.Execv(ctx, p, fs, "hello", []string{"hello", "world"}, simaddrspace.New, tf)
	AssertEq(nil, err)

	ExpectEq(2, tf.A0)
	ExpectNe(0, tf.A1)
	ExpectNe(0, tf.SP)
	ExpectEq(0, tf.EPC)
}

func (t *SysprocTest) ExecvMissingFileFails() {
	ctx := context.Background()
	p := newTestProcess("execer", 0)
	fs := &fakeExecFS{}

	tf := &trapframe.TrapFrame{EPC: 0x1234}
	err := sysproc.Execv(ctx, p, fs, "nope", []string{"nope"}, simaddrspace.New, tf)
	ExpectEq(kernerr.ENOENT, err)
	ExpectEq(0x1234, tf.EPC)
}

////////////////////////////////////////////////////////////////////////
// Getpid
////////////////////////////////////////////////////////////////////////

func (t *SysprocTest) Getpid() {
	p := newTestProcess("p", 0)
	p.PID = 42
	ExpectEq(42, sysproc.Getpid(p))
}
