// Package bytecode models JVM method bodies as editable instruction lists.
//
// The model follows the tree API familiar from class file tooling:
//
//   - Opcodes: the JVM instruction set the interpreter supports, with
//     per-opcode metadata (operand form, and operand/result types for pure
//     numeric operations, which gives stack widths statically)
//
//   - InsnList: a doubly linked list of *Insn. An instruction pointer is a
//     stable handle; positions are recomputed lazily after edits. Set
//     replaces in place, which is how folding turns instructions into NOPs
//     without disturbing labels, jumps or exception ranges.
//
//   - Method, Class, TryCatchBlock: containers for instruction lists and
//     exception tables. Labels are pseudo-instructions inside the list.
//
//   - Builder: a small assembler used by tests and the CLI sample.
//
//   - Codec: canonical CBOR encoding of methods and class bundles. Equal
//     methods encode to equal bytes, so encodings double as snapshots.
package bytecode
