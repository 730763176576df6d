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

// Package kernerr defines the error taxonomy crossing the syscall boundary.
//
// Every value is a real POSIX errno number (via golang.org/x/sys/unix)
// rather than an ad hoc sentinel, so that the dispatcher's (v0, a3) return
// convention carries numbers a user-space libc stub can drop straight into
// errno.
package kernerr

import (
	"golang.org/x/sys/unix"
)

// Errno is an error that also carries the positive errno number the
// dispatcher places in v0 on failure.
type Errno unix.Errno

func (e Errno) Error() string { return unix.Errno(e).Error() }

// Number returns the positive errno value to place in v0.
func (e Errno) Number() int32 { return int32(e) }

// The error codes named in the syscall ABI (spec §6).
const (
	EBADF  = Errno(unix.EBADF)
	EFAULT = Errno(unix.EFAULT)
	EINVAL = Errno(unix.EINVAL)
	EMFILE = Errno(unix.EMFILE)
	ENOMEM = Errno(unix.ENOMEM)
	ENOSYS = Errno(unix.ENOSYS)
	ESPIPE = Errno(unix.ESPIPE)
	ENPROC = Errno(unix.EAGAIN) // os161 ENPROC has no unix.Errno analogue; EAGAIN ("try again") is the closest POSIX fit for a full process table.
	ESRCH  = Errno(unix.ESRCH)
	ECHILD = Errno(unix.ECHILD)

	// Surfaced unchanged from the VFS collaborator (spec §7).
	ENOENT = Errno(unix.ENOENT)
	EEXIST = Errno(unix.EEXIST)
	ENOSPC = Errno(unix.ENOSPC)
)

// FromError reports whether err is an Errno and, if so, returns it. It
// does not map any other error; ok is false and the caller picks the
// errno to report. Collaborators are expected to return Errno directly.
func FromError(err error) (Errno, bool) {
	e, ok := err.(Errno)
	return e, ok
}
