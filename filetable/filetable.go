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

// Package filetable implements the per-process file descriptor table
// (spec §3/§4.B): a fixed-capacity array of OpenFile references, a
// table-level lock guarding slot membership, and the stdio bootstrap
// (§4.C).
package filetable

import (
	"golang.org/x/net/context"

	"github.com/jacobsa/syncutil"

	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/openfile"
	"github.com/os161go/kernel/vnode"
)

// OpenMax is OPEN_MAX: the fixed capacity of a file table (spec §3: >= 64).
const OpenMax = 64

// FileTable is a fixed-capacity array of optional OpenFile references,
// indexed by file descriptor.
//
// The table lock orders before any OpenFile lock (spec §5): a caller
// holding Lock must never then block acquiring an OpenFile's own lock
// from a second caller that is itself waiting on Lock. Lock protects slot
// membership only — never the contents of an OpenFile, which is the
// OpenFile's own lock's job.
type FileTable struct {
	mu syncutil.InvariantMutex

	// INVARIANT: len(slots) == OpenMax
	slots [OpenMax]*openfile.OpenFile // GUARDED_BY(mu)
}

// New returns a FileTable with every slot empty.
func New() *FileTable {
	ft := &FileTable{}
	ft.mu = syncutil.NewInvariantMutex(ft.checkInvariants)
	return ft
}

func (ft *FileTable) checkInvariants() {
	// Slots may be nil or non-nil freely; there's nothing cross-slot to
	// check beyond what the Go array bound already guarantees.
}

// Lock acquires the table lock. Exposed so multi-step syscalls can hold
// it across "resolve fd": read, write and lseek release it the moment
// they've acquired the target OpenFile's own lock, per spec §4.D, while
// dup2 holds it across its whole slot update.
func (ft *FileTable) Lock() { ft.mu.Lock() }

// Unlock releases the table lock.
func (ft *FileTable) Unlock() { ft.mu.Unlock() }

func valid(fd int) error {
	if fd < 0 || fd >= OpenMax {
		return kernerr.EBADF
	}
	return nil
}

// GetLocked resolves fd to its OpenFile. The caller must hold the table
// lock.
func (ft *FileTable) GetLocked(fd int) (*openfile.OpenFile, error) {
	if err := valid(fd); err != nil {
		return nil, err
	}
	of := ft.slots[fd]
	if of == nil {
		return nil, kernerr.EBADF
	}
	return of, nil
}

// Get resolves fd to its OpenFile, taking the table lock itself.
func (ft *FileTable) Get(fd int) (*openfile.OpenFile, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.GetLocked(fd)
}

// InsertAtLocked installs of at fd, failing if the slot is already
// occupied — callers that mean to overwrite must RemoveLocked first. The
// caller must hold the table lock.
func (ft *FileTable) InsertAtLocked(fd int, of *openfile.OpenFile) error {
	if err := valid(fd); err != nil {
		return err
	}
	if ft.slots[fd] != nil {
		return kernerr.EBADF
	}
	ft.slots[fd] = of
	return nil
}

// InsertLowest installs of at the smallest unused fd >= 3 (0, 1, 2 are
// reserved for stdio), taking the table lock itself.
func (ft *FileTable) InsertLowest(of *openfile.OpenFile) (int, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for fd := 3; fd < OpenMax; fd++ {
		if ft.slots[fd] == nil {
			ft.slots[fd] = of
			return fd, nil
		}
	}
	return 0, kernerr.EMFILE
}

// RemoveLocked clears fd's slot without touching the vnode — the caller
// decides whether this was the OpenFile's last reference and, if so,
// closes the vnode itself. The caller must hold the table lock.
func (ft *FileTable) RemoveLocked(fd int) error {
	if err := valid(fd); err != nil {
		return err
	}
	if ft.slots[fd] == nil {
		return kernerr.EBADF
	}
	ft.slots[fd] = nil
	return nil
}

// IsAvailableLocked reports whether fd is a valid, currently-empty slot.
// The caller must hold the table lock.
func (ft *FileTable) IsAvailableLocked(fd int) (bool, error) {
	if err := valid(fd); err != nil {
		return false, err
	}
	return ft.slots[fd] == nil, nil
}

// Copy creates a new FileTable whose slots reference the same OpenFiles
// as ft — a shallow, reference-sharing copy. Both tables now share each
// OpenFile, and therefore its offset and lock: this is the POSIX fork
// contract (spec §4.B).
func (ft *FileTable) Copy() *FileTable {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	child := New()
	child.slots = ft.slots
	return child
}

// BootstrapStdio opens the console device three times — read-only,
// write-only, write-only — and installs the results at slots 0, 1, 2
// (spec §4.C). Any failure propagates; slots already populated before the
// failing open are left in place for the caller to unwind.
func BootstrapStdio(ctx context.Context, ft *FileTable, fs vnode.FS) error {
	modes := [3]vnode.OpenFlags{vnode.ORDONLY, vnode.OWRONLY, vnode.OWRONLY}

	ft.mu.Lock()
	defer ft.mu.Unlock()

	for fd, mode := range modes {
		vn, err := fs.Open(ctx, vnode.ConsoleDevice, mode, 0, nil)
		if err != nil {
			return err
		}
		ft.slots[fd] = openfile.New(vn, mode)
	}
	return nil
}
