package change

import "github.com/cshekharsharma/coredoc"

// OpKind enumerates the operation content variants of spec.md §3.
type OpKind uint8

const (
	OpListInsert OpKind = iota
	OpListDelete
	OpTextInsert
	OpTextDelete
	OpStyleStart
	OpStyleEnd
	OpMapSet
	OpTreeCreate
	OpTreeMove
	OpTreeDelete
	OpTreeEmptyTrash
)

// ListInsertContent is a List insert: a slice reference into the shared
// value arena plus the left-insert position at creation time.
type ListInsertContent struct {
	ValueStart int
	ValueLen   int
	Position   int
}

// SeqDeleteContent is shared by List and Text delete: the starting id of
// the deleted run, its starting position, length, and direction.
type SeqDeleteContent struct {
	StartID  coredoc.ID
	Position int
	Length   int
	Reversed bool
}

// TextInsertContent is a Text insert: a slice reference into the shared
// text arena (in Unicode code units) plus the insert position.
type TextInsertContent struct {
	UnicodeStart  int
	UnicodeLength int
	Position      int
}

// StyleContent is a rich-text interval bound (start or end anchor): the
// zero-width marker's position at creation time, plus the mark key/value
// and inclusivity of each side of the interval it opens or closes.
type StyleContent struct {
	Position         int
	Key              string
	Value            any
	StartInclusive   bool
	EndInclusive     bool
	SpansDeletions   bool
}

// MapSetContent is a Map set: a key plus either a value arena reference
// or a tombstone (ValuePresent=false).
type MapSetContent struct {
	Key          string
	ValueIndex   int
	ValuePresent bool
}

// TreeOpContent covers tree create/move/delete/empty-trash: the target
// tree node, its optional new parent, and its optional fractional-index
// position.
type TreeOpContent struct {
	TargetTreeID    string
	ParentTreeID    string
	HasParent       bool
	Position        []byte
	HasPosition     bool
}

// Operation is one entry within a Change: its container index, an offset
// from the change's starting counter, and its content.
type Operation struct {
	ContainerIdx int
	CounterOffset uint32
	Kind         OpKind

	ListInsert ListInsertContent
	SeqDelete  SeqDeleteContent
	TextInsert TextInsertContent
	Style      StyleContent
	MapSet     MapSetContent
	Tree       TreeOpContent
}

// Len returns how many counters this operation consumes: insert/delete
// ops of length N consume N counters (one per inserted/deleted element);
// all other ops consume exactly 1.
func (op Operation) Len() int {
	switch op.Kind {
	case OpListInsert:
		return op.ListInsert.ValueLen
	case OpListDelete, OpTextDelete:
		return op.SeqDelete.Length
	case OpTextInsert:
		return op.TextInsert.UnicodeLength
	default:
		return 1
	}
}
