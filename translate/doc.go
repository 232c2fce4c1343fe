// Package translate is the ahead-of-time WebAssembly to Go translator.
//
// The pipeline is a strict batch over one module: the decoded record is
// analyzed once, each internal function body is lifted independently into a
// typed single-assignment IR, and the IR is printed as one Go source file
// whose only dependency is the wasmrt runtime package.
//
//	module, _ := wasm.ParseModule(data)
//	src, err := translate.Translate(module, translate.Options{Package: "mymod"})
//
// The generated file preserves WebAssembly's execution semantics - wrapping
// integer arithmetic, signed and unsigned operator variants, trapping
// operations surfaced as structured errors, bounds-checked linear memory,
// signature-checked indirect calls, and import/export boundaries - without
// any use of unsafe.
package translate
