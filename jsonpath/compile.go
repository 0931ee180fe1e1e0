package jsonpath

import (
	"strconv"
	"strings"

	"github.com/cshekharsharma/coredoc/errtype"
)

// Selector decides whether one path element satisfies one JSONPath
// accessor. Matching is deliberately conservative: anything whose shape
// can't be checked without runtime length/type information (negative
// index, slice, wildcard) matches any element of compatible kind.
type Selector interface {
	matches(e PathElem) bool
}

// NameSelector matches an exact map key.
type NameSelector struct{ Name string }

func (s NameSelector) matches(e PathElem) bool { return e.Kind == ElemKey && e.Key == s.Name }

// IndexSelector matches a sequence position. A negative index can't be
// resolved without the sequence's current length, so it matches any
// sequence element to avoid a false negative.
type IndexSelector struct{ Index int }

func (s IndexSelector) matches(e PathElem) bool {
	if e.Kind != ElemSeq {
		return false
	}
	if !e.HasSeq || s.Index < 0 {
		return true
	}
	return e.Seq == s.Index
}

// UnionKeySelector matches any of a fixed set of map keys.
type UnionKeySelector struct{ Keys []string }

func (s UnionKeySelector) matches(e PathElem) bool {
	if e.Kind != ElemKey {
		return false
	}
	for _, k := range s.Keys {
		if k == e.Key {
			return true
		}
	}
	return false
}

// UnionIndexSelector matches any of a fixed set of sequence positions.
type UnionIndexSelector struct{ Indices []int }

func (s UnionIndexSelector) matches(e PathElem) bool {
	if e.Kind != ElemSeq {
		return false
	}
	if !e.HasSeq {
		return true
	}
	for _, i := range s.Indices {
		if i == e.Seq || i < 0 {
			return true
		}
	}
	return false
}

// SliceSelector matches any sequence element; its bounds can't be
// checked without the sequence's length, so (per spec.md §4.7) it is
// conservative rather than exact.
type SliceSelector struct{}

func (s SliceSelector) matches(e PathElem) bool { return e.Kind == ElemSeq }

// WildSelector matches any path element.
type WildSelector struct{}

func (s WildSelector) matches(PathElem) bool { return true }

// NodeSelector matches an exact tree node id.
type NodeSelector struct{ ID string }

func (s NodeSelector) matches(e PathElem) bool { return e.Kind == ElemNode && e.Node == s.ID }

// Step is one compiled JSONPath segment: a set of selectors any of which
// may advance the automaton, plus whether it also permits recursive
// descent (staying at this step while diving deeper).
type Step struct {
	Recursive bool
	Selectors []Selector
}

// Query is a compiled JSONPath expression: an ordered list of steps.
type Query struct {
	Steps []Step
}

// Compile parses a JSONPath query (the subset spec.md §4.7 scopes in:
// "$", ".name", "..name", "[*]"/"*", "[n]", "[n1,n2,...]",
// "['k1','k2',...]", and "[start:end:step]") into a Query ready for
// NewMatcher.
func Compile(path string) (*Query, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, errtype.NewArgumentError("jsonpath: query must start with '$': %q", path)
	}
	rest := path[1:]
	var steps []Step
	for len(rest) > 0 {
		recursive := false
		switch {
		case strings.HasPrefix(rest, ".."):
			recursive = true
			rest = rest[2:]
		case strings.HasPrefix(rest, "."):
			rest = rest[1:]
		case strings.HasPrefix(rest, "["):
			// bracket selector with no leading dot, e.g. "$[0]"
		default:
			return nil, errtype.NewArgumentError("jsonpath: expected '.', '..' or '[' in %q at %q", path, rest)
		}

		var sel Selector
		var err error
		sel, rest, err = parseSegment(rest)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Recursive: recursive, Selectors: []Selector{sel}})
	}
	return &Query{Steps: steps}, nil
}

func parseSegment(rest string) (Selector, string, error) {
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, "", errtype.NewArgumentError("jsonpath: unterminated '[' in %q", rest)
		}
		content := rest[1:end]
		sel, err := parseBracketContent(content)
		return sel, rest[end+1:], err
	}
	if strings.HasPrefix(rest, "*") {
		return WildSelector{}, rest[1:], nil
	}
	end := len(rest)
	for i, c := range rest {
		if c == '.' || c == '[' {
			end = i
			break
		}
	}
	name := rest[:end]
	if name == "" {
		return nil, "", errtype.NewArgumentError("jsonpath: empty name segment in %q", rest)
	}
	return NameSelector{Name: name}, rest[end:], nil
}

func parseBracketContent(content string) (Selector, error) {
	content = strings.TrimSpace(content)
	switch {
	case content == "*":
		return WildSelector{}, nil
	case strings.Contains(content, ":"):
		return SliceSelector{}, nil
	case strings.HasPrefix(content, "'") || strings.HasPrefix(content, "\""):
		keys, err := parseQuotedList(content)
		if err != nil {
			return nil, err
		}
		if len(keys) == 1 {
			return NameSelector{Name: keys[0]}, nil
		}
		return UnionKeySelector{Keys: keys}, nil
	default:
		parts := strings.Split(content, ",")
		indices := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, errtype.NewArgumentError("jsonpath: invalid index %q", p)
			}
			indices = append(indices, n)
		}
		if len(indices) == 1 {
			return IndexSelector{Index: indices[0]}, nil
		}
		return UnionIndexSelector{Indices: indices}, nil
	}
}

func parseQuotedList(content string) ([]string, error) {
	var keys []string
	for _, part := range strings.Split(content, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 {
			return nil, errtype.NewArgumentError("jsonpath: malformed quoted key %q", part)
		}
		quote := part[0]
		if part[len(part)-1] != quote || (quote != '\'' && quote != '"') {
			return nil, errtype.NewArgumentError("jsonpath: malformed quoted key %q", part)
		}
		keys = append(keys, part[1:len(part)-1])
	}
	return keys, nil
}
