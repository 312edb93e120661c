// Package idtable binds host assigned numeric ids to objects that every peer
// creates locally in the same order.
//
// The host hands out ids with Assign. A client learns an id the first time a
// message references it: Resolve either finds the id already bound or binds
// it to the oldest object still waiting for one. Ids announced with Expect
// before anything is registered wait for the next Register.
package idtable

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownID = errors.New("id is not bound and nothing is waiting for one")
	ErrExhausted = errors.New("ids exhausted")
)

type ID interface {
	~uint16 | ~uint32
}

type Table[K ID, V comparable] struct {
	byID    map[K]V
	ids     map[V]K
	pending []V
	// ids announced before their value was registered
	expected []K
	next     K

	bind func(V, K)
}

// New returns an empty table. bind, if not nil, is called once for every
// object when it gets its id. Ids start at 1.
func New[K ID, V comparable](bind func(V, K)) *Table[K, V] {
	return &Table[K, V]{
		byID: make(map[K]V),
		ids:  make(map[V]K),
		next: 1,
		bind: bind,
	}
}

// Register queues v for an id, or binds it right away to the oldest expected
// id. Registering a bound or already queued value does nothing.
func (t *Table[K, V]) Register(v V) {
	if _, ok := t.ids[v]; ok {
		return
	}
	if slices.Contains(t.pending, v) {
		return
	}

	if len(t.expected) > 0 {
		id := t.expected[0]
		t.expected = t.expected[1:]
		t.put(id, v)
		return
	}
	t.pending = append(t.pending, v)
}

// Expect binds id like Resolve does. If nothing is waiting for an id, id
// waits for the next Register instead.
func (t *Table[K, V]) Expect(id K) {
	if _, ok := t.byID[id]; ok {
		return
	}
	if slices.Contains(t.expected, id) {
		return
	}
	if len(t.pending) == 0 {
		t.expected = append(t.expected, id)
		return
	}

	v := t.pending[0]
	t.pending = t.pending[1:]
	t.put(id, v)
}

// Assign gives v the next free id, or returns the id it already has.
func (t *Table[K, V]) Assign(v V) (K, error) {
	if id, ok := t.ids[v]; ok {
		return id, nil
	}
	for {
		if t.next == 0 {
			return 0, ErrExhausted
		}
		if _, taken := t.byID[t.next]; !taken {
			break
		}
		t.next++
	}

	if i := slices.Index(t.pending, v); i >= 0 {
		t.pending = slices.Delete(t.pending, i, i+1)
	}

	id := t.next
	t.next++
	t.put(id, v)
	return id, nil
}

// Resolve returns the value bound to id, binding the oldest pending value on
// first use.
func (t *Table[K, V]) Resolve(id K) (V, error) {
	if v, ok := t.byID[id]; ok {
		return v, nil
	}
	if len(t.pending) == 0 {
		var zero V
		return zero, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}

	v := t.pending[0]
	t.pending = t.pending[1:]
	t.put(id, v)
	return v, nil
}

func (t *Table[K, V]) put(id K, v V) {
	t.byID[id] = v
	t.ids[v] = id
	if t.bind != nil {
		t.bind(v, id)
	}
}

func (t *Table[K, V]) Lookup(id K) (V, bool) {
	v, ok := t.byID[id]
	return v, ok
}

func (t *Table[K, V]) ID(v V) (K, bool) {
	id, ok := t.ids[v]
	return id, ok
}

// IDs returns the bound ids in ascending order.
func (t *Table[K, V]) IDs() []K {
	ids := make([]K, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len is the number of bound values.
func (t *Table[K, V]) Len() int {
	return len(t.byID)
}

// Pending is the number of values waiting for an id.
func (t *Table[K, V]) Pending() int {
	return len(t.pending)
}
