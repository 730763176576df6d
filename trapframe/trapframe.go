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

// Package trapframe models the register-based syscall ABI: the slice of
// CPU state the trap entry assembly would have saved, and the table-driven
// helpers for splitting/joining 64-bit values across the aligned register
// pairs the calling convention uses.
package trapframe

// TrapFrame is the subset of the MIPS exception frame the syscall layer
// cares about. v0 carries the call number on entry and the low result word
// (or error number) on return; v1 carries the high result word; a3 carries
// the 0/1 success flag.
type TrapFrame struct {
	V0, V1         uint32
	A0, A1, A2, A3 uint32
	SP             uint32
	EPC            uint32
}

// Split64 decomposes a 64-bit value into the (hi, lo) register pair this
// repo has standardized on. v0 = lo, v1 = hi on a successful 64-bit return,
// per spec §6; see DESIGN.md for why this differs from the reassembly bug
// in the source this was distilled from.
func Split64(v int64) (hi, lo uint32) {
	hi = uint32(uint64(v) >> 32)
	lo = uint32(uint64(v))
	return
}

// Join64 is the inverse of Split64.
func Join64(hi, lo uint32) int64 {
	return int64(uint64(hi)<<32 | uint64(lo))
}

// ArgShape describes how many 32-bit-register and 64-bit-register-pair
// arguments a syscall takes, in the order they're encountered, so the
// dispatcher can decode them without a bespoke switch arm per call. A
// 64-bit argument always starts at an even-numbered register (a0 or a2);
// if a 32-bit argument would leave it starting at an odd one, that
// register is skipped, per spec §4.G / §9.
type ArgShape struct {
	// Kinds lists the argument kinds in call order: Arg32 or Arg64.
	Kinds []ArgKind

	// Returns64 is true if the call produces a 64-bit result (only lseek,
	// per spec §4.D), false if it produces a single 32-bit result or none.
	Returns64 bool
}

// ArgKind distinguishes a 32-bit register argument from a 64-bit
// aligned-pair argument.
type ArgKind int

const (
	Arg32 ArgKind = iota
	Arg64
)

// DecodedArgs holds the raw register-width values lifted out of a trap
// frame (and, if the calling convention ran out of registers, the user
// stack) before the syscall handler interprets them as fds, pointers,
// flags, etc.
type DecodedArgs struct {
	U32 []uint32 // one entry per Arg32 slot, in order
	I64 []int64  // one entry per Arg64 slot, in order
}

// Decode reads tf's argument registers according to shape, calling
// stackWord(i) for the i-th word (0-based) beyond a3 whenever the
// convention runs past the four argument registers — lseek's whence is
// the one call in spec §6 where this happens: fd consumes a0, the
// 64-bit pos consumes the aligned pair a2:a3 (a1 skipped to realign),
// leaving no register for whence. stackWord is expected to read
// sp + 16 + 4*i, skipping the register-save area per spec §4.G.
func Decode(tf *TrapFrame, shape ArgShape, stackWord func(i int) uint32) DecodedArgs {
	regs := [4]uint32{tf.A0, tf.A1, tf.A2, tf.A3}
	var out DecodedArgs
	i := 0
	stackIdx := 0

	next := func() uint32 {
		if i < 4 {
			v := regs[i]
			i++
			return v
		}
		v := stackWord(stackIdx)
		stackIdx++
		return v
	}

	for _, k := range shape.Kinds {
		switch k {
		case Arg32:
			out.U32 = append(out.U32, next())
		case Arg64:
			if i < 4 && i%2 != 0 {
				i++ // skip the misaligned register slot
			}
			hi, lo := next(), next()
			out.I64 = append(out.I64, Join64(hi, lo))
		}
	}
	return out
}

// EncodeSuccess writes a successful return into tf: v0/v1 hold the result
// (low/high for a 64-bit result, result/0 for a 32-bit one), a3 = 0, and
// epc is advanced past the syscall instruction.
func EncodeSuccess(tf *TrapFrame, result int64, returns64 bool) {
	if returns64 {
		hi, lo := Split64(result)
		tf.V0, tf.V1 = lo, hi
	} else {
		tf.V0, tf.V1 = uint32(result), 0
	}
	tf.A3 = 0
	tf.EPC += 4
}

// EncodeError writes a failed return into tf: v0 holds the positive errno,
// a3 = 1, and epc is advanced past the syscall instruction.
func EncodeError(tf *TrapFrame, errno int32) {
	tf.V0 = uint32(errno)
	tf.A3 = 1
	tf.EPC += 4
}
