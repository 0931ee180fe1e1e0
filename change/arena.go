// Package change defines the wire-adjacent record types (Change,
// Operation, and their content variants) and the process-lifetime arenas
// that intern the bulky, repeated payloads they reference: container
// identifiers, Unicode text bytes, arbitrary values, and fractional-index
// positions (spec.md §3 "Arenas").
//
// Arenas are append-only for the life of a document: once an index is
// handed out it remains valid and stable, so other structures (the DAG,
// the tracker, container state) can cache arena indices freely.
package change

import "sync"

// ContainerID identifies one container instance. Containers are
// interned by a (kind, discriminator) pair: discriminator is either the
// creating operation's ID string form (for a container created by an
// operation) or a well-known root name.
type ContainerID struct {
	Kind          ContainerKind
	CreatorOpID   string // empty for a root container
	RootName      string // non-empty only for root containers
}

// ContainerKind enumerates the four container types spec.md §1 scopes in.
type ContainerKind uint8

const (
	ContainerList ContainerKind = iota
	ContainerMap
	ContainerText
	ContainerTree
)

func (k ContainerKind) String() string {
	switch k {
	case ContainerList:
		return "list"
	case ContainerMap:
		return "map"
	case ContainerText:
		return "text"
	case ContainerTree:
		return "tree"
	default:
		return "unknown"
	}
}

// ContainerArena interns ContainerIDs, handing out stable indices.
// Grounded on spec.md §9's "containers live in an append-only registry;
// children reference parents by index" guidance, generalised from the
// teacher's per-instance `registry map[ID]*Node` (rga.go) to a
// process-lifetime, index-addressed table.
type ContainerArena struct {
	mu      sync.RWMutex
	ids     []ContainerID
	byKey   map[ContainerID]int
}

// NewContainerArena returns an empty container arena.
func NewContainerArena() *ContainerArena {
	return &ContainerArena{byKey: make(map[ContainerID]int)}
}

// Intern returns the stable index for id, creating an entry if needed.
func (a *ContainerArena) Intern(id ContainerID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx, ok := a.byKey[id]; ok {
		return idx
	}
	idx := len(a.ids)
	a.ids = append(a.ids, id)
	a.byKey[id] = idx
	return idx
}

// Lookup returns the index for id without creating an entry.
func (a *ContainerArena) Lookup(id ContainerID) (int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.byKey[id]
	return idx, ok
}

// Get returns the ContainerID stored at idx. O(1) per spec.md §3.
func (a *ContainerArena) Get(idx int) ContainerID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ids[idx]
}

// Len returns the number of interned containers.
func (a *ContainerArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.ids)
}

// TextArena interns the Unicode text backing Text insert operations, in
// one contiguous append-only buffer of runes addressed by
// [start, start+length) ranges measured in Unicode code points
// (spec.md §3 "unicode-start, unicode-length"), so slicing by offset is
// O(1).
type TextArena struct {
	mu         sync.RWMutex
	runes      []rune
}

// NewTextArena returns an empty text arena.
func NewTextArena() *TextArena { return &TextArena{} }

// Append appends s's runes to the arena and returns the starting
// unicode-offset and the number of code units appended.
func (a *TextArena) Append(s string) (start, length int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	start = len(a.runes)
	rs := []rune(s)
	a.runes = append(a.runes, rs...)
	return start, len(rs)
}

// Slice returns the code points in [start, start+length).
func (a *TextArena) Slice(start, length int) []rune {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]rune, length)
	copy(out, a.runes[start:start+length])
	return out
}

// Len returns the number of interned code points.
func (a *TextArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.runes)
}

// ValueArena interns arbitrary typed values (spec.md's value taxonomy:
// null, bool, number, string, bytes, container reference) referenced by
// List insert and Map set operations.
type ValueArena struct {
	mu     sync.RWMutex
	values []any
}

// NewValueArena returns an empty value arena.
func NewValueArena() *ValueArena { return &ValueArena{} }

// Append interns values and returns the starting index and count.
func (a *ValueArena) Append(values ...any) (start, length int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	start = len(a.values)
	a.values = append(a.values, values...)
	return start, len(values)
}

// Slice returns a copy of the values in [start, start+length).
func (a *ValueArena) Slice(start, length int) []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]any, length)
	copy(out, a.values[start:start+length])
	return out
}

// Len returns the number of interned values.
func (a *ValueArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// KeyArena interns map/style keys as strings, since they repeat heavily
// across a document's history.
type KeyArena struct {
	mu    sync.RWMutex
	keys  []string
	byKey map[string]int
}

// NewKeyArena returns an empty key arena.
func NewKeyArena() *KeyArena {
	return &KeyArena{byKey: make(map[string]int)}
}

// Intern returns the stable index for key, creating an entry if needed.
func (a *KeyArena) Intern(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx, ok := a.byKey[key]; ok {
		return idx
	}
	idx := len(a.keys)
	a.keys = append(a.keys, key)
	a.byKey[key] = idx
	return idx
}

// Get returns the key stored at idx.
func (a *KeyArena) Get(idx int) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.keys[idx]
}

// PositionArena interns fractional-index byte strings used by tree
// operations (spec.md §3 "Fractional index").
type PositionArena struct {
	mu        sync.RWMutex
	positions [][]byte
}

// NewPositionArena returns an empty position arena.
func NewPositionArena() *PositionArena { return &PositionArena{} }

// Intern appends pos and returns its stable index.
func (a *PositionArena) Intern(pos []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := len(a.positions)
	cp := append([]byte{}, pos...)
	a.positions = append(a.positions, cp)
	return idx
}

// Get returns the position stored at idx.
func (a *PositionArena) Get(idx int) []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.positions[idx]
}

// Arenas groups the full set of process-lifetime arenas a document owns.
type Arenas struct {
	Containers *ContainerArena
	Text       *TextArena
	Values     *ValueArena
	Keys       *KeyArena
	Positions  *PositionArena
}

// NewArenas constructs an empty set of arenas.
func NewArenas() *Arenas {
	return &Arenas{
		Containers: NewContainerArena(),
		Text:       NewTextArena(),
		Values:     NewValueArena(),
		Keys:       NewKeyArena(),
		Positions:  NewPositionArena(),
	}
}
