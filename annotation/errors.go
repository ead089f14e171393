package annotation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/speakeasy-api/annotator/flowgraph"
)

// Sentinels for the failure classes, usable with errors.Is.
var (
	ErrHardIncompatibility  = errors.New("hard incompatibility")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrDomainViolation      = errors.New("domain violation")
	ErrSoftImprecision      = errors.New("soft imprecision")
)

// UnionError reports two values with no valid common supertype.
type UnionError struct {
	Left, Right *Value
	Reason      string
}

func (e *UnionError) Error() string {
	msg := fmt.Sprintf("cannot union %s and %s", e.Left, e.Right)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnionError) Unwrap() error { return ErrHardIncompatibility }

// UnsupportedOperationError reports an operation with no handler for the
// given operand kinds.
type UnsupportedOperationError struct {
	Op    flowgraph.Opcode
	Kinds []Kind
	Pos   flowgraph.Position
}

func (e *UnsupportedOperationError) Error() string {
	kinds := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		kinds[i] = k.String()
	}
	return fmt.Sprintf("%s: operation %s not supported on (%s)", e.Pos, e.Op, strings.Join(kinds, ", "))
}

func (e *UnsupportedOperationError) Unwrap() error { return ErrUnsupportedOperation }

// DomainError reports an operand outside the restricted language, such as a
// non-constant attribute name.
type DomainError struct {
	Pos flowgraph.Position
	Msg string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *DomainError) Unwrap() error { return ErrDomainViolation }

// ImprecisionError is a soft imprecision promoted to an error by strict mode.
type ImprecisionError struct {
	Pos flowgraph.Position
	Msg string
}

func (e *ImprecisionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *ImprecisionError) Unwrap() error { return ErrSoftImprecision }

// ListChangeError reports a widening of a list that was frozen.
type ListChangeError struct {
	Old, New *Value
}

func (e *ListChangeError) Error() string {
	return fmt.Sprintf("frozen list item changed from %s to %s", e.Old, e.New)
}
