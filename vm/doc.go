// Package vm implements the bytecode interpreter that method bodies are
// simulated in.
//
// This package contains:
//   - Value representation for the JVM stack categories, with Top fillers
//     for wide values
//   - Operand stack, local variables, execution contexts and the backtrace
//   - A per-VM processor table and method entry/exit hooks
//   - The dispatch loop with try/catch routing of faults
//   - Java arithmetic shared by processors and the constant folder
//   - Builtin runtime classes with Go natives
package vm
