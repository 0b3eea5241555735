// Package asm lays routines out as JVM method code.
//
// [Assemble] interns operands into a constant pool, picks the shortest
// encoding of every instruction, widens jumps whose offsets do not fit in
// 16 bits, and computes the operand stack and local slot limits. A routine
// whose code exceeds 65535 bytes fails with [ErrMethodTooLarge].
package asm
