// Package jsonpath compiles a JSONPath query into an ordered list of
// steps and drives a conservative nondeterministic walk over observed
// container diff paths to decide whether a subscription might be
// affected (spec.md §4.7). The matcher never produces a false negative:
// it may fire for changes that, on closer inspection, did not actually
// touch the query's target, but it never stays silent for one that did.
package jsonpath

import "strconv"

// ElemKind discriminates the three addressing schemes a path element can
// use: a map key, a sequence position (list/text), or a tree node id.
type ElemKind uint8

const (
	ElemKey ElemKind = iota
	ElemSeq
	ElemNode
)

// PathElem is one step of a container diff's path, or one extension
// appended past the container itself to describe what inside it
// changed.
type PathElem struct {
	Kind   ElemKind
	Key    string
	Seq    int
	HasSeq bool // false means "some sequence position changed", not a known index
	Node   string
}

// KeyElem builds a map-key path element.
func KeyElem(key string) PathElem { return PathElem{Kind: ElemKey, Key: key} }

// SeqElem builds a known-index sequence path element.
func SeqElem(i int) PathElem { return PathElem{Kind: ElemSeq, Seq: i, HasSeq: true} }

// UnknownSeqElem builds a sequence path element standing in for "some
// position changed", used when a list/text diff's precise index set
// isn't worth enumerating for matching purposes.
func UnknownSeqElem() PathElem { return PathElem{Kind: ElemSeq} }

// NodeElem builds a tree-node path element.
func NodeElem(id string) PathElem { return PathElem{Kind: ElemNode, Node: id} }

// ElemsFromContainerPath converts a DocState.Path() result (a root-first
// chain of map keys and/or list indices) into matcher path elements.
func ElemsFromContainerPath(path []any) []PathElem {
	out := make([]PathElem, 0, len(path))
	for _, p := range path {
		switch v := p.(type) {
		case string:
			out = append(out, KeyElem(v))
		case int:
			out = append(out, SeqElem(v))
		default:
			out = append(out, UnknownSeqElem())
		}
	}
	return out
}

func (e PathElem) String() string {
	switch e.Kind {
	case ElemKey:
		return e.Key
	case ElemNode:
		return "#" + e.Node
	default:
		if e.HasSeq {
			return "[" + strconv.Itoa(e.Seq) + "]"
		}
		return "[*]"
	}
}
