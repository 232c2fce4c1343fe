// Package errors provides the structured error type used by the translator.
//
// Every fatal translator error carries a Phase (which pipeline stage failed)
// and a Kind (what class of failure it was), so callers can match on either
// without string inspection:
//
//	if errors.Is(err, &werrors.Error{Phase: werrors.PhaseAnalyze, Kind: werrors.KindUnsupported}) {
//	    // input uses a feature outside the supported subset
//	}
//
// KindInternal marks invariant violations in the lifter or emitter; it should
// never fire on an input that passed validation, and seeing one is a bug in
// the translator rather than in the input module.
package errors
