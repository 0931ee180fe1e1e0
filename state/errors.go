package state

import "github.com/cshekharsharma/coredoc/errtype"

// errWrongOpType reports a local op handed to the wrong container kind's
// ApplyLocalOp (a caller bug, not a data problem).
func errWrongOpType(containerKind string, op any) error {
	return errtype.NewArgumentError("%s: unexpected op type %T", containerKind, op)
}
