// Package ir lifts decoded WebAssembly function bodies into a typed,
// single-assignment statement list that the code generator prints directly.
//
// The lifter walks the operator stream exactly once, simulating the operand
// stack with virtual variables. Every value an operator produces gets a
// fresh variable; in particular every local.get takes a snapshot of the
// local's current value, so a later local.set cannot retroactively change a
// value that is still on the stack.
//
// Structured control flow survives lifting as open/close markers carrying
// resolved labels: blocks and ifs expose an exit label, loops a continue
// label. Branch statements reference those labels together with the value
// moves the branch performs, so the emitter never re-derives arities.
//
// Code after a terminator is handled with the validator's polymorphic stack
// rule: the enclosing frame is marked unreachable and operators are skipped
// (tracking only nesting) until the matching else or end re-anchors the
// stack at the frame's recorded height.
package ir
