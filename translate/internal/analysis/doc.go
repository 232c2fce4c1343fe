// Package analysis turns a decoded module into the resolved view the lifter
// and emitter work from: interned signatures, a single function index space
// with imports ahead of internal functions, the owned-versus-imported memory
// classification, import groups keyed by host module name, constant-folded
// segment offsets, and the export surface.
//
// Analysis runs once per module, before any function body is touched, and
// its result is read-only for the rest of the pipeline.
package analysis
