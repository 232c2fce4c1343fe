// Package codegen prints an analyzed, lifted module as one Go source file.
//
// The output depends only on the wasmrt runtime package. Structured control
// flow is rendered with labelled single-iteration for loops, so block exits
// become labelled breaks and loop back-edges become labelled continues;
// labels no branch targets are omitted because Go rejects unused labels.
//
// Emission order is fixed - header, capability interfaces, module struct,
// constructor, private function methods by index, export surface in export
// section order - so a given module always produces byte-identical output.
package codegen
