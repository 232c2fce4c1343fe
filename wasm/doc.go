// Package wasm provides WebAssembly binary format parsing and encoding for
// the subset of the language the translator accepts.
//
// This package implements a parser and encoder for WebAssembly MVP binary
// modules plus a small number of widely deployed extensions:
//
//   - Sign-extension operators (i32.extend8_s and friends)
//   - Non-trapping float-to-int conversions (i32.trunc_sat_f32_s and friends)
//   - Mutable globals
//   - Multi-value function signatures
//   - Passive data and element segments with the bulk operators that
//     reference them (memory.init, data.drop, memory.copy, memory.fill,
//     table.init, elem.drop)
//
// Everything else - SIMD, threads, exception handling, GC types, tail calls,
// reference types beyond funcref tables, memory64 - is rejected at decode
// time with an error naming the feature; multiple memories and multiple
// tables are rejected by Validate. Rejection here
// is deliberate: downstream stages assume the instruction stream only
// contains operators they know how to translate.
//
// # Parsing
//
// Parse a WebAssembly module from binary:
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Function bodies are kept as raw bytes; decode them on demand:
//
//	instrs, err := wasm.DecodeInstructions(module.Code[0].Code)
//
// # Encoding
//
// Encode a module back to binary:
//
//	encoded := module.Encode()
//
// Encoding exists for tooling and tests that build modules programmatically;
// round-tripping a parsed module preserves its semantics.
package wasm
