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

// Command os161demo boots a single simulated process against the
// reference hostfs backend and runs the write/read round-trip scenario
// (spec §8 S1) end to end, the way mount_memfs boots a FileSystem and
// mounts it at a real path.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	"github.com/os161go/kernel/addrspace/simaddrspace"
	"github.com/os161go/kernel/filetable"
	"github.com/os161go/kernel/kernlog"
	"github.com/os161go/kernel/proc"
	"github.com/os161go/kernel/sysfile"
	"github.com/os161go/kernel/vnode"
	"github.com/os161go/kernel/vnode/hostfs"
)

var fRoot = flag.String(
	"mountpoint",
	"",
	"Host directory backing the emu0: device. Required.")

var fProcMax = flag.Int(
	"procmax",
	proc.MaxProcs,
	"Expected process table capacity; must match the compiled-in MAX_PROC_NUM.")

var fOpenMax = flag.Int(
	"openmax",
	filetable.OpenMax,
	"Expected per-process file table capacity; must match the compiled-in OPEN_MAX.")

func bootProcess(ctx context.Context, pt *proc.ProcessTable, fs vnode.FS) (*proc.Process, error) {
	as, err := simaddrspace.New()
	if err != nil {
		return nil, err
	}

	ft := filetable.New()
	if err := filetable.BootstrapStdio(ctx, ft, fs); err != nil {
		return nil, err
	}

	rootCwd, err := fs.Chdir(ctx, "emu0:", nil)
	if err != nil {
		return nil, err
	}

	p := proc.New("os161demo", 0, as, ft, rootCwd, timeutil.RealClock())
	if _, err := pt.Allocate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// runS1 performs spec §8 scenario S1: write then read back a 40-byte
// line through testfile, the canonical smoke test for the whole file
// syscall stack (open/write/close/open/read/close).
func runS1(ctx context.Context, p *proc.Process, fs vnode.FS) error {
	const line = "Twiddle dee dee, Twiddle dum dum.......\n"

	fd, err := sysfile.Open(ctx, p, fs, "testfile", vnode.OWRONLY|vnode.OCREAT|vnode.OTRUNC)
	if err != nil {
		return fmt.Errorf("open (write): %w", err)
	}
	if _, err := sysfile.Write(ctx, p, fd, []byte(line)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := sysfile.Close(ctx, p, fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	fd, err = sysfile.Open(ctx, p, fs, "testfile", vnode.ORDONLY)
	if err != nil {
		return fmt.Errorf("open (read): %w", err)
	}
	got, err := sysfile.Read(ctx, p, fd, len(line))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := sysfile.Close(ctx, p, fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if string(got) != line {
		return fmt.Errorf("round-trip mismatch: got %q, want %q", got, line)
	}
	return nil
}

func main() {
	flag.Parse()

	if *fRoot == "" {
		log.Fatalf("You must set -mountpoint.")
	}
	if *fProcMax != proc.MaxProcs {
		kernlog.Get().Printf("warning: -procmax=%d does not match compiled-in MaxProcs=%d", *fProcMax, proc.MaxProcs)
	}
	if *fOpenMax != filetable.OpenMax {
		kernlog.Get().Printf("warning: -openmax=%d does not match compiled-in OpenMax=%d", *fOpenMax, filetable.OpenMax)
	}

	fs, err := hostfs.New(*fRoot)
	if err != nil {
		log.Fatalf("hostfs.New: %v", err)
	}

	ctx := context.Background()
	pt := proc.NewTable()

	p, err := bootProcess(ctx, pt, fs)
	if err != nil {
		log.Fatalf("bootProcess: %v", err)
	}

	if err := runS1(ctx, p, fs); err != nil {
		log.Fatalf("S1: %v", err)
	}

	fmt.Println("S1 write/read round-trip: ok")
}
