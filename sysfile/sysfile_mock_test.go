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

package sysfile_test

import (
	"errors"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	"github.com/kylelemons/godebug/pretty"

	. "github.com/jacobsa/oglematchers"
	"github.com/jacobsa/oglemock"
	. "github.com/jacobsa/ogletest"

	"github.com/os161go/kernel/filetable"
	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/proc"
	"github.com/os161go/kernel/sysfile"
	"github.com/os161go/kernel/vnode"
	"github.com/os161go/kernel/vnode/mock_vnode"
)

// mockFS always hands out a single mock node, letting each test script the
// node's expectations through its oglemock controller rather than faking
// real file contents.
type mockFS struct {
	node vnode.Node
}

func (fs *mockFS) Open(ctx context.Context, path string, flags vnode.OpenFlags, mode uint32, cwd vnode.Dir) (vnode.Node, error) {
	return fs.node, nil
}
func (fs *mockFS) Chdir(ctx context.Context, path string, cwd vnode.Dir) (vnode.Dir, error) {
	return nil, kernerr.ENOSYS
}
func (fs *mockFS) Getcwd(ctx context.Context, cwd vnode.Dir, buf *vnode.IOBuf) (int, error) {
	return 0, kernerr.ENOSYS
}

type SysfileMockTest struct {
	node mock_vnode.MockNode
	fs   *mockFS
	p    *proc.Process
}

func init() { RegisterTestSuite(&SysfileMockTest{}) }

func (t *SysfileMockTest) SetUp(ti *TestInfo) {
	t.node = mock_vnode.NewMockNode(ti.MockController, "node")
	t.fs = &mockFS{node: t.node}

	ft := filetable.New()
	t.p = proc.New("test", 0, nil, ft, nil, timeutil.RealClock())

	fd, err := sysfile.Open(context.Background(), t.p, t.fs, "anything", vnode.ORDWR)
	AssertEq(nil, err)
	AssertEq(3, fd)
}

// Read advances the OpenFile's offset by exactly what the vnode reported
// it read, not by the requested length, and the next call's offset
// argument proves it: the second expectation only matches if the first
// read really only advanced by 2.
func (t *SysfileMockTest) ReadAdvancesOffsetByBytesActuallyRead() {
	ExpectCall(t.node, "Read")(Any(), Any(), Equals(int64(0))).
		WillOnce(oglemock.Return(2, nil))

	got, err := sysfile.Read(context.Background(), t.p, 3, 10)
	AssertEq(nil, err)
	AssertEq("", pretty.Compare(2, len(got)))

	ExpectCall(t.node, "Read")(Any(), Any(), Equals(int64(2))).
		WillOnce(oglemock.Return(0, nil))

	got, err = sysfile.Read(context.Background(), t.p, 3, 10)
	AssertEq(nil, err)
	ExpectEq(0, len(got))
}

// A vnode-level read error propagates to the caller unchanged.
func (t *SysfileMockTest) ReadPropagatesVnodeError() {
	ExpectCall(t.node, "Read")(Any(), Any(), Any()).
		WillOnce(oglemock.Return(0, errors.New("taco")))

	_, err := sysfile.Read(context.Background(), t.p, 3, 10)
	ExpectThat(err, Error(Equals("taco")))
}

// Close calls through to the vnode's Close exactly once.
func (t *SysfileMockTest) CloseCallsVnodeClose() {
	ExpectCall(t.node, "Close")(Any()).
		WillOnce(oglemock.Return(nil))

	AssertEq(nil, sysfile.Close(context.Background(), t.p, 3))
}
