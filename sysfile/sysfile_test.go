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
	"testing"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	. "github.com/jacobsa/ogletest"

	"github.com/os161go/kernel/filetable"
	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/proc"
	"github.com/os161go/kernel/sysfile"
	"github.com/os161go/kernel/vnode"
)

func TestSysfile(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// A minimal in-memory vnode.FS, flat namespace, good enough to drive
// spec §8's S1-S4 scenarios without depending on the host filesystem.
////////////////////////////////////////////////////////////////////////

type memFile struct {
	data     []byte
	refcount int
}

type memNode struct {
	file *memFile
}

func (n *memNode) Read(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	if offset >= int64(len(n.file.data)) {
		return 0, nil
	}
	k := copy(buf.Bytes, n.file.data[offset:])
	return k, nil
}

func (n *memNode) Write(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	end := offset + int64(len(buf.Bytes))
	if end > int64(len(n.file.data)) {
		grown := make([]byte, end)
		copy(grown, n.file.data)
		n.file.data = grown
	}
	copy(n.file.data[offset:end], buf.Bytes)
	return len(buf.Bytes), nil
}

func (n *memNode) Stat(ctx context.Context) (vnode.Stat, error) {
	return vnode.Stat{Size: int64(len(n.file.data))}, nil
}

func (n *memNode) IsSeekable() bool { return true }
func (n *memNode) IncRef()          { n.file.refcount++ }
func (n *memNode) Close(ctx context.Context) error {
	n.file.refcount--
	return nil
}

type memDir struct {
	memNode
	path string
}

func (d *memDir) Path() string { return d.path }

type memFS struct {
	files map[string]*memFile
}

func newMemFS() *memFS {
	return &memFS{files: map[string]*memFile{
		vnode.ConsoleDevice: {},
	}}
}

func (fs *memFS) Open(ctx context.Context, path string, flags vnode.OpenFlags, mode uint32, cwd vnode.Dir) (vnode.Node, error) {
	f, ok := fs.files[path]
	if !ok {
		if flags&vnode.OCREAT == 0 {
			return nil, kernerr.ENOENT
		}
		f = &memFile{}
		fs.files[path] = f
	} else if flags&vnode.OCREAT != 0 && flags&vnode.OEXCL != 0 {
		return nil, kernerr.EEXIST
	}
	if flags&vnode.OTRUNC != 0 {
		f.data = nil
	}
	f.refcount++
	return &memNode{file: f}, nil
}

func (fs *memFS) Chdir(ctx context.Context, path string, cwd vnode.Dir) (vnode.Dir, error) {
	return &memDir{path: path}, nil
}

func (fs *memFS) Getcwd(ctx context.Context, cwd vnode.Dir, buf *vnode.IOBuf) (int, error) {
	path := "/"
	if cwd != nil {
		path = cwd.Path()
	}
	n := copy(buf.Bytes, path)
	return n, nil
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

type SysfileTest struct {
	fs *memFS
	p  *proc.Process
}

func init() { RegisterTestSuite(&SysfileTest{}) }

func (t *SysfileTest) SetUp(ti *TestInfo) {
	t.fs = newMemFS()
	ft := filetable.New()
	AssertEq(nil, filetable.BootstrapStdio(context.Background(), ft, t.fs))
	t.p = proc.New("test", 0, nil, ft, nil, timeutil.RealClock())
}

// S1: open for write, write a line, close; open for read, read it back,
// close; bytes match.
func (t *SysfileTest) S1WriteReadRoundTrip() {
	ctx := context.Background()
	const line = "Twiddle dee dee, Twiddle dum dum.......\n"

	fd, err := sysfile.Open(ctx, t.p, t.fs, "testfile", vnode.OWRONLY|vnode.OCREAT|vnode.OTRUNC)
	AssertEq(nil, err)
	n, err := sysfile.Write(ctx, t.p, fd, []byte(line))
	AssertEq(nil, err)
	ExpectEq(len(line), n)
	AssertEq(nil, sysfile.Close(ctx, t.p, fd))

	fd, err = sysfile.Open(ctx, t.p, t.fs, "testfile", vnode.ORDONLY)
	AssertEq(nil, err)
	got, err := sysfile.Read(ctx, t.p, fd, len(line))
	AssertEq(nil, err)
	AssertEq(nil, sysfile.Close(ctx, t.p, fd))

	ExpectEq(line, string(got))
}

// S2: lseek SEEK_SET, SEEK_CUR (no-op with pos 0), and SEEK_END.
func (t *SysfileTest) S2LseekThreeWay() {
	ctx := context.Background()

	fd, err := sysfile.Open(ctx, t.p, t.fs, "seekfile", vnode.OWRONLY|vnode.OCREAT)
	AssertEq(nil, err)
	_, err = sysfile.Write(ctx, t.p, fd, []byte("0123456789"))
	AssertEq(nil, err)
	AssertEq(nil, sysfile.Close(ctx, t.p, fd))

	fd, err = sysfile.Open(ctx, t.p, t.fs, "seekfile", vnode.ORDONLY)
	AssertEq(nil, err)
	defer sysfile.Close(ctx, t.p, fd)

	off, err := sysfile.Lseek(ctx, t.p, fd, 3, vnode.SeekSet)
	AssertEq(nil, err)
	ExpectEq(int64(3), off)

	off, err = sysfile.Lseek(ctx, t.p, fd, 0, vnode.SeekCur)
	AssertEq(nil, err)
	ExpectEq(int64(3), off)

	off, err = sysfile.Lseek(ctx, t.p, fd, 0, vnode.SeekEnd)
	AssertEq(nil, err)
	ExpectEq(int64(10), off)

	_, err = sysfile.Lseek(ctx, t.p, fd, -100, vnode.SeekSet)
	ExpectEq(kernerr.EINVAL, err)
}

// S3: dup2 aliases newfd onto oldfd's OpenFile, so an lseek through one
// moves the other's position — they share the same offset.
func (t *SysfileTest) S3Dup2SharesOffset() {
	ctx := context.Background()

	fd, err := sysfile.Open(ctx, t.p, t.fs, "dupfile", vnode.ORDWR|vnode.OCREAT)
	AssertEq(nil, err)
	_, err = sysfile.Write(ctx, t.p, fd, []byte("hello"))
	AssertEq(nil, err)

	newfd, err := sysfile.Dup2(ctx, t.p, fd, 10)
	AssertEq(nil, err)
	ExpectEq(10, newfd)

	_, err = sysfile.Lseek(ctx, t.p, newfd, 0, vnode.SeekSet)
	AssertEq(nil, err)
	off, err := sysfile.Lseek(ctx, t.p, fd, 0, vnode.SeekCur)
	AssertEq(nil, err)
	ExpectEq(int64(0), off)

	// oldfd == newfd is a documented no-op success.
	same, err := sysfile.Dup2(ctx, t.p, fd, fd)
	AssertEq(nil, err)
	ExpectEq(fd, same)
}

// S4: chdir updates p.Cwd; __getcwd reflects the new directory.
func (t *SysfileTest) S4ChdirGetcwd() {
	ctx := context.Background()

	AssertEq(nil, sysfile.Chdir(ctx, t.p, t.fs, "subdir"))
	got, err := sysfile.Getcwd(ctx, t.p, t.fs, 64)
	AssertEq(nil, err)
	ExpectEq("subdir", string(got))
}

func (t *SysfileTest) OpenMissingFileFailsENOENT() {
	ctx := context.Background()
	_, err := sysfile.Open(ctx, t.p, t.fs, "nope", vnode.ORDONLY)
	ExpectEq(kernerr.ENOENT, err)
}

func (t *SysfileTest) DoubleCloseFailsEBADF() {
	ctx := context.Background()
	fd, err := sysfile.Open(ctx, t.p, t.fs, "closeme", vnode.OWRONLY|vnode.OCREAT)
	AssertEq(nil, err)
	AssertEq(nil, sysfile.Close(ctx, t.p, fd))
	ExpectEq(kernerr.EBADF, sysfile.Close(ctx, t.p, fd))
}

func (t *SysfileTest) WriteToReadOnlyFDFailsEBADF() {
	ctx := context.Background()
	fd, err := sysfile.Open(ctx, t.p, t.fs, "rofile", vnode.ORDONLY|vnode.OCREAT)
	AssertEq(nil, err)
	_, err = sysfile.Write(ctx, t.p, fd, []byte("x"))
	ExpectEq(kernerr.EBADF, err)
}
