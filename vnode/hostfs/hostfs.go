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

// Package hostfs is the reference vnode.FS backend: it roots a VFS
// namespace at a real host directory and backs every vnode.Node with a
// real *os.File, the way a teaching kernel's emufs backs its "emu0:"
// device with a single real file underneath. It exists so the core
// syscall layer (openfile/filetable/sysfile/sysproc) has something
// concrete to drive end to end (scenarios S1-S6 of spec §8).
package hostfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	fallocate "github.com/detailyang/go-fallocate"
	"github.com/jacobsa/syncutil"
	"golang.org/x/net/context"
	"golang.org/x/sys/unix"

	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/vnode"
)

// PreallocateThreshold is the size above which a freshly created file is
// handed to go-fallocate before any bytes are written, matching how a real
// filesystem driver avoids fragmenting a large new file.
const PreallocateThreshold = 1 << 20 // 1 MiB

// FS roots a VFS namespace at a real host directory.
//
// INVARIANT: root is an absolute path that exists.
type FS struct {
	root string

	mu    syncutil.InvariantMutex
	nodes map[*fileNode]struct{} // GUARDED_BY(mu); every fileNode Open has returned; never pruned or read
}

// New roots a hostfs.FS at root, which must already exist on the host.
func New(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fs := &FS{root: abs, nodes: make(map[*fileNode]struct{})}
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)
	return fs, nil
}

func (fs *FS) checkInvariants() {
	if !filepath.IsAbs(fs.root) {
		panic(fmt.Sprintf("hostfs root not absolute: %q", fs.root))
	}
}

// resolve turns a VFS path into a host path, honoring vnode.ConsoleDevice and
// chdir-relative resolution the way vfs_open/vfs_chdir do against
// curproc->p_cwd in the source this was distilled from.
func (fs *FS) resolve(path string, cwd vnode.Dir) string {
	if path == vnode.ConsoleDevice {
		return path // the console has no host path; handled specially in Open.
	}

	clean := strings.TrimPrefix(path, "emu0:")
	if filepath.IsAbs(clean) {
		return filepath.Join(fs.root, clean)
	}
	base := fs.root
	if cwd != nil {
		if d, ok := cwd.(*dirNode); ok {
			base = d.host
		}
	}
	return filepath.Join(base, clean)
}

// Open implements vnode.FS.
func (fs *FS) Open(ctx context.Context, path string, flags vnode.OpenFlags, mode uint32, cwd vnode.Dir) (vnode.Node, error) {
	if path == vnode.ConsoleDevice {
		return newConsoleNode(flags)
	}

	host := fs.resolve(path, cwd)

	info, statErr := os.Stat(host)
	if statErr == nil && info.IsDir() {
		return fs.openDir(host)
	}

	osFlags, err := toOSFlags(flags)
	if err != nil {
		return nil, err
	}

	existed := statErr == nil
	f, err := os.OpenFile(host, osFlags, os.FileMode(mode&0o777))
	if err != nil {
		return nil, translateOSError(err)
	}

	if !existed && flags&vnode.OCREAT != 0 {
		// Preallocate generously-sized new files up front, the way a real
		// filesystem driver avoids fragmentation on the first big write.
		if sz := sizeHint(ctx); sz >= PreallocateThreshold {
			_ = fallocate.Fallocate(f, 0, sz)
		}
	}

	n := &fileNode{file: f, seekable: true}
	n.mu = syncutil.NewInvariantMutex(n.checkInvariants)
	n.refcount = 1

	fs.mu.Lock()
	fs.nodes[n] = struct{}{}
	fs.mu.Unlock()

	return n, nil
}

// sizeHint lets a caller advertise an expected file size via the context,
// used only by hostfs; absent a hint, no preallocation is attempted.
type sizeHintKey struct{}

// WithSizeHint attaches an expected-size hint to ctx for hostfs.Open to
// consult when deciding whether to preallocate a newly created file.
func WithSizeHint(ctx context.Context, size int64) context.Context {
	return context.WithValue(ctx, sizeHintKey{}, size)
}

func sizeHint(ctx context.Context) int64 {
	v, _ := ctx.Value(sizeHintKey{}).(int64)
	return v
}

func (fs *FS) openDir(host string) (vnode.Node, error) {
	n := &dirNode{host: host}
	n.refcount = 1
	return n, nil
}

// Chdir implements vnode.FS.
func (fs *FS) Chdir(ctx context.Context, path string, cwd vnode.Dir) (vnode.Dir, error) {
	host := fs.resolve(path, cwd)
	info, err := os.Stat(host)
	if err != nil {
		return nil, translateOSError(err)
	}
	if !info.IsDir() {
		return nil, kernerr.EINVAL
	}
	return &dirNode{host: host, refcount: 1}, nil
}

// Getcwd implements vnode.FS.
func (fs *FS) Getcwd(ctx context.Context, cwd vnode.Dir, buf *vnode.IOBuf) (int, error) {
	path := fs.root
	if cwd != nil {
		path = cwd.Path()
	}
	rel := strings.TrimPrefix(path, fs.root)
	display := "emu0:" + rel
	if rel == "" {
		display = "emu0:"
	}

	n := copy(buf.Bytes, display)
	if n < len(display) {
		return n, kernerr.EFAULT
	}
	return n, nil
}

func toOSFlags(flags vnode.OpenFlags) (int, error) {
	var osFlags int
	switch flags.AccessMode() {
	case vnode.ORDONLY:
		osFlags = os.O_RDONLY
	case vnode.OWRONLY:
		osFlags = os.O_WRONLY
	case vnode.ORDWR:
		osFlags = os.O_RDWR
	default:
		return 0, kernerr.EINVAL
	}
	if flags&vnode.OCREAT != 0 {
		osFlags |= os.O_CREATE
	}
	if flags&vnode.OEXCL != 0 {
		osFlags |= os.O_EXCL
	}
	if flags&vnode.OTRUNC != 0 {
		osFlags |= os.O_TRUNC
	}
	// OAPPEND's positioning is handled by sysfile.Open stat-ing the file and
	// seeding the OpenFile's offset at the end, then driving every write
	// through that explicit offset. os.O_APPEND would only get in the way:
	// (*os.File).WriteAt refuses to operate on an append-mode file at all.
	return osFlags, nil
}

func translateOSError(err error) error {
	if errno, ok := err.(*os.PathError); ok {
		switch errno.Err {
		case unix.ENOENT:
			return kernerr.ENOENT
		case unix.EEXIST:
			return kernerr.EEXIST
		case unix.ENOSPC:
			return kernerr.ENOSPC
		}
	}
	return err
}

// fileNode is a vnode.Node backed by a real host file.
//
// INVARIANT: refcount > 0 while reachable from any FileTable slot.
type fileNode struct {
	mu syncutil.InvariantMutex

	file     *os.File // GUARDED_BY(mu)
	refcount int       // GUARDED_BY(mu)
	seekable bool
}

func (n *fileNode) checkInvariants() {
	if n.refcount < 0 {
		panic("negative hostfs refcount")
	}
}

func (n *fileNode) Read(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	read, err := n.file.ReadAt(buf.Bytes, offset)
	if err == io.EOF {
		err = nil
	}
	return read, err
}

func (n *fileNode) Write(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.file.WriteAt(buf.Bytes, offset)
}

func (n *fileNode) Stat(ctx context.Context) (vnode.Stat, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	info, err := n.file.Stat()
	if err != nil {
		return vnode.Stat{}, err
	}
	return vnode.Stat{Size: info.Size()}, nil
}

func (n *fileNode) IsSeekable() bool { return n.seekable }

func (n *fileNode) IncRef() {
	n.mu.Lock()
	n.refcount++
	n.mu.Unlock()
}

func (n *fileNode) Close(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refcount--
	if n.refcount > 0 {
		return nil
	}
	return n.file.Close()
}

// dirNode is a vnode.Dir: it names a host directory and is never
// read/written directly, only used for chdir/getcwd and as the base for
// resolving relative opens.
type dirNode struct {
	host     string
	refcount int
}

func (d *dirNode) Path() string { return d.host }

func (d *dirNode) Read(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	return 0, kernerr.EINVAL
}

func (d *dirNode) Write(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	return 0, kernerr.EINVAL
}

func (d *dirNode) Stat(ctx context.Context) (vnode.Stat, error) { return vnode.Stat{}, nil }
func (d *dirNode) IsSeekable() bool                             { return false }
func (d *dirNode) IncRef()                                      { d.refcount++ }
func (d *dirNode) Close(ctx context.Context) error              { d.refcount--; return nil }
