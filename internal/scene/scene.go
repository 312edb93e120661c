// Package scene keeps entity identity consistent across peers. Each peer
// registers its entities in the same order; the host numbers them and
// clients adopt those numbers.
package scene

import (
	"errors"
	"fmt"

	"github.com/blukai/lanparty/internal/idtable"
)

var ErrUnknownEntity = errors.New("unknown entity")

type Entity struct {
	Name string

	id    uint32
	bound bool
}

func NewEntity(name string) *Entity {
	return &Entity{Name: name}
}

// ID is the host assigned id; ok is false until the entity is synchronized.
func (e *Entity) ID() (id uint32, ok bool) {
	return e.id, e.bound
}

func (e *Entity) String() string {
	if e.bound {
		return fmt.Sprintf("%s#%d", e.Name, e.id)
	}
	return e.Name
}

type Table struct {
	table *idtable.Table[uint32, *Entity]
}

func NewTable() *Table {
	return &Table{
		table: idtable.New(func(e *Entity, id uint32) {
			e.id = id
			e.bound = true
		}),
	}
}

func (t *Table) Register(e *Entity) {
	t.table.Register(e)
}

// Assign numbers e. Host only.
func (t *Table) Assign(e *Entity) (uint32, error) {
	id, err := t.table.Assign(e)
	if err != nil {
		return 0, fmt.Errorf("could not assign id to entity %s: %w", e.Name, err)
	}
	return id, nil
}

// Resolve returns the entity bound to id, binding the oldest registered
// entity on first use.
func (t *Table) Resolve(id uint32) (*Entity, error) {
	e, err := t.table.Resolve(id)
	if errors.Is(err, idtable.ErrUnknownID) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	return e, err
}

// Expect binds id to the oldest registered value, or to the next one
// registered if there is none yet.
func (t *Table) Expect(id uint32) {
	t.table.Expect(id)
}

func (t *Table) Lookup(id uint32) (*Entity, bool) {
	return t.table.Lookup(id)
}

// IDs returns the bound ids in the order they were assigned.
func (t *Table) IDs() []uint32 {
	return t.table.IDs()
}

func (t *Table) Len() int {
	return t.table.Len()
}
