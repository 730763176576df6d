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

package hostfs

import (
	"os"

	"golang.org/x/net/context"

	"github.com/os161go/kernel/kernerr"
	"github.com/os161go/kernel/vnode"
)

// consoleNode backs the "con:" device (spec §6) with the host process's
// own stdin/stdout, which is all a teaching kernel's console device needs
// to behave like: unseekable, line-oriented, one direction per handle.
type consoleNode struct {
	readOnly  bool
	writeOnly bool
	f         *os.File
}

func newConsoleNode(flags vnode.OpenFlags) (*consoleNode, error) {
	switch flags.AccessMode() {
	case vnode.ORDONLY:
		return &consoleNode{readOnly: true, f: os.Stdin}, nil
	case vnode.OWRONLY:
		return &consoleNode{writeOnly: true, f: os.Stdout}, nil
	default:
		return nil, kernerr.EINVAL
	}
}

func (c *consoleNode) Read(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	if c.writeOnly {
		return 0, kernerr.EBADF
	}
	return c.f.Read(buf.Bytes)
}

func (c *consoleNode) Write(ctx context.Context, buf *vnode.IOBuf, offset int64) (int, error) {
	if c.readOnly {
		return 0, kernerr.EBADF
	}
	return c.f.Write(buf.Bytes)
}

func (c *consoleNode) Stat(ctx context.Context) (vnode.Stat, error) { return vnode.Stat{}, nil }
func (c *consoleNode) IsSeekable() bool                             { return false }
func (c *consoleNode) IncRef()                                      {}
func (c *consoleNode) Close(ctx context.Context) error              { return nil }
