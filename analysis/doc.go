// Package analysis tracks the types of operand stack cells and local slots
// through a routine.
//
// [Analyzer.Analyze] runs a worklist dataflow pass from the entry frame
// derived from the routine's descriptor, merging frames where control flow
// joins. The resulting [Result] answers range queries through
// [Result.Range]: the stack consumed and produced by a span of
// instructions and the locals it reads and writes.
package analysis
