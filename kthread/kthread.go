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

// Package kthread is the thread/scheduler collaborator contract named in
// spec §6 (thread_fork, thread_exit, mips_usermode, enter_new_process),
// rendered the idiomatic Go way: a kernel thread is a goroutine, the same
// shape the teacher uses to dispatch each incoming request concurrently
// (`go s.handleFuseRequest(...)` in connection.go/server.go).
package kthread

import (
	"github.com/os161go/kernel/kernlog"
)

// Entry is the function a forked thread runs: the equivalent of the
// entrypoint/data pair passed to thread_fork, already closed over
// whatever state it needs (the cloned trap frame, the child process,
// the child address space).
type Entry func()

// Fork starts entry running on a new kernel thread (thread_fork). It
// never blocks and never returns an error in this reference
// implementation — goroutine creation doesn't fail the way a bounded
// kernel thread pool can, so callers that modeled error handling around
// ENOMEM from thread_fork never see it fire here. name is used only for
// logging, the way thread_fork's name argument only ever shows up in
// kernel debug output.
func Fork(name string, entry Entry) {
	go func() {
		kernlog.Get().Printf("kthread: %s starting", name)
		entry()
		kernlog.Get().Printf("kthread: %s exiting", name)
	}()
}
