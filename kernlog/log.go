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

// Package kernlog is the kprintf-equivalent of the kernel core: the
// dispatcher logs each decoded syscall, fork and kernel-thread start/exit
// are logged, and sys_open logs a VFS open failure through Errorf, in the
// kprintf("sys_foo: %s", strerror(result)) style of the original C. Other
// syscall errors are not logged.
package kernlog

import (
	"flag"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sync"
)

var fEnableDebug = flag.Bool(
	"kernel.debug",
	false,
	"Write kernel debugging messages to stderr.")

var gLogger *log.Logger
var gLoggerOnce sync.Once

func initLogger() {
	var writer io.Writer = ioutil.Discard
	if flag.Parsed() && *fEnableDebug {
		writer = os.Stderr
	}

	const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	gLogger = log.New(writer, "kernel: ", flags)
}

// Get returns the shared kernel logger, initializing it on first use.
func Get() *log.Logger {
	gLoggerOnce.Do(initLogger)
	return gLogger
}

// Errorf logs a "funcname: err" line the way kprintf(..., strerror(result))
// does at every syscall error return.
func Errorf(funcName string, err error) {
	Get().Printf("%s: %s", funcName, err)
}
