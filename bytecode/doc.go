// Package bytecode provides the routine model shared by the analysis,
// splitting, assembly and execution packages.
//
// # Key Types
//
//   - [Type]: a value type backed by a JVM descriptor, plus the tracker-only
//     sorts null, top and uninitialized
//   - [Instruction]: a closed set of instruction variants, including the
//     [Label], [LineNumber] and [FrameMarker] pseudo-instructions
//   - [Routine]: an immutable method body with its try/catch table
//   - [Builder]: a fluent emitter producing a [Routine]
//
// # Immutability
//
// A [Routine] is immutable after construction. [NewRoutine] copies the
// instruction and try/catch slices, and resolves every label to its offset
// once. Instructions are shared between routines only by copying them
// with Clone and a label map:
//
//	labels := bytecode.FreshLabels(insns)
//	for _, insn := range insns {
//	    b.Emit(insn.Clone(labels))
//	}
//
// Index-based access is used for collections:
//
//	r.InstructionAt(0)
//	r.RegionAt(i)
package bytecode
