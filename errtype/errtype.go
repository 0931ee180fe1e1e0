// Package errtype defines the engine-wide error taxonomy used across
// coredoc's packages. Each kind is a distinct type so callers can branch
// on it with errors.As instead of matching strings.
package errtype

import "fmt"

// DecodeError reports a malformed binary input whose shape could not even
// be parsed far enough to compute a checksum.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string { return "decode error: " + e.Message }

// NewDecodeError constructs a DecodeError with a formatted message.
func NewDecodeError(format string, args ...any) *DecodeError {
	return &DecodeError{Message: fmt.Sprintf(format, args...)}
}

// DecodeChecksumMismatch reports that a CRC recorded alongside a block or
// record did not match the bytes actually read.
type DecodeChecksumMismatch struct {
	Want, Got uint32
}

func (e *DecodeChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch: want %08x got %08x", e.Want, e.Got)
}

// DecodeDataCorruption reports a structurally invalid payload whose
// checksum nonetheless matched (e.g. an internal offset pointing outside
// the buffer, or invalid UTF-8 in a string column).
type DecodeDataCorruption struct {
	Message string
}

func (e *DecodeDataCorruption) Error() string { return "data corruption: " + e.Message }

// NewDecodeDataCorruption constructs a DecodeDataCorruption with a
// formatted message.
func NewDecodeDataCorruption(format string, args ...any) *DecodeDataCorruption {
	return &DecodeDataCorruption{Message: fmt.Sprintf(format, args...)}
}

// IncompatibleFutureEncoding reports a version byte this build does not
// know how to decode.
type IncompatibleFutureEncoding struct {
	Version uint16
}

func (e *IncompatibleFutureEncoding) Error() string {
	return fmt.Sprintf("incompatible future encoding: version %d", e.Version)
}

// ArgumentError reports invalid public API use: an out-of-bounds index, a
// tree move that would introduce a cycle, a reference to a missing tree
// node, or a zero-length style interval.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string { return "argument error: " + e.Message }

// NewArgumentError constructs an ArgumentError with a formatted message.
func NewArgumentError(format string, args ...any) *ArgumentError {
	return &ArgumentError{Message: fmt.Sprintf(format, args...)}
}

// TransactionError reports an invariant violation visible to the user
// inside an open transaction (e.g. an out-of-bounds mutation).
type TransactionError struct {
	Message string
}

func (e *TransactionError) Error() string { return "transaction error: " + e.Message }

// NewTransactionError constructs a TransactionError with a formatted message.
func NewTransactionError(format string, args ...any) *TransactionError {
	return &TransactionError{Message: fmt.Sprintf(format, args...)}
}

// TreeNodeNotExist reports a reference to a tree node id that is unknown
// or has been permanently removed (emptied from the trash).
type TreeNodeNotExist struct {
	NodeID string
}

func (e *TreeNodeNotExist) Error() string { return "tree node does not exist: " + e.NodeID }

// TreeCycle reports that a requested move would make a tree node its own
// ancestor.
type TreeCycle struct {
	NodeID, NewParentID string
}

func (e *TreeCycle) Error() string {
	return fmt.Sprintf("tree move would create a cycle: %s -> %s", e.NodeID, e.NewParentID)
}

// FrontiersNotIncluded reports that a Frontiers value could not be
// converted to a VersionVector because the DAG does not yet cover it.
type FrontiersNotIncluded struct {
	Message string
}

func (e *FrontiersNotIncluded) Error() string { return "frontiers not included in dag: " + e.Message }

// NewFrontiersNotIncluded constructs a FrontiersNotIncluded with a
// formatted message.
func NewFrontiersNotIncluded(format string, args ...any) *FrontiersNotIncluded {
	return &FrontiersNotIncluded{Message: fmt.Sprintf(format, args...)}
}
