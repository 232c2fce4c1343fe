// Package wasmrt is the fixed runtime library that translated modules link
// against. It is the only import a generated source file carries.
//
// The surface is deliberately small: a bounds-checked linear memory, a
// function table with checked typed dispatch, the structured trap type, and
// the handful of numeric operations whose WebAssembly semantics do not map
// onto a single Go operator (leading/trailing zero counts, rotations,
// checked float-to-int truncation, float min/max with NaN propagation,
// round-to-even).
//
// Every fallible operation returns a *TrapError sentinel; generated code
// short-circuits on the first trap and propagates it unchanged, so the kind
// observed by the embedding application is always the first failure.
//
// Nothing here retains references past the call that consumed them, and no
// operation allocates outside the module's own memory, so a module instance
// owns all of its state and independent instances never interfere.
package wasmrt
