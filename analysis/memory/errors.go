package memory

import (
	"errors"
	"fmt"

	"github.com/verikit/memsplit/analysis/ir"
)

// ErrKind discriminates the fatal translation failures of the memory
// domain. A translation error aborts the analysis of the enclosing
// function; guessing at any of these points would be unsound.
type ErrKind int

const (
	// ErrUnknownStackOffset is an access through the stack node whose
	// offset could not be bounded.
	ErrUnknownStackOffset ErrKind = iota
	// ErrOverlappingFields is an attempt to register a field partially
	// overlapping an existing field on an exact node.
	ErrOverlappingFields
	// ErrSummarizedOverlap is an unknown-offset access to a summarized
	// node without the optimistic-overlap relaxation.
	ErrSummarizedOverlap
	// ErrNestedAllocation is an allocation starting while a previous
	// allocation's size is still unresolved.
	ErrNestedAllocation
	// ErrUnknownLength is a mixed-region intrinsic with a statically
	// unknown length.
	ErrUnknownLength
)

var errKindStrings = map[ErrKind]string{
	ErrUnknownStackOffset: "unknown stack offset",
	ErrOverlappingFields:  "overlapping fields on exact node",
	ErrSummarizedOverlap:  "possible overlap on summarized node",
	ErrNestedAllocation:   "allocation cut mid-object",
	ErrUnknownLength:      "statically unknown length",
}

func (k ErrKind) String() string {
	return errKindStrings[k]
}

// TranslationError is the typed, non-recoverable failure surfaced when
// no sound symbolic encoding exists for a memory access.
type TranslationError struct {
	Kind ErrKind
	Fn   string
	Ref  ir.InstrRef
	Msg  string
}

func (e *TranslationError) Error() string {
	s := fmt.Sprintf("translation error in %s at %s: %s", e.Fn, e.Ref, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// translationErr constructs a translation error for the instruction
// under analysis.
func translationErr(kind ErrKind, fn string, ref ir.InstrRef, format string, args ...any) error {
	return &TranslationError{
		Kind: kind,
		Fn:   fn,
		Ref:  ref,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// AsTranslation unpacks a translation error.
func AsTranslation(err error) (*TranslationError, bool) {
	var te *TranslationError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
