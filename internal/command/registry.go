package command

import (
	"errors"
	"fmt"

	"github.com/blukai/lanparty/internal/idtable"
	"github.com/blukai/lanparty/internal/protocol"
)

// Registry maps ids to commands. Host and clients hold one each; the host
// assigns ids, clients resolve them.
type Registry struct {
	table *idtable.Table[uint16, *Command]
}

func NewRegistry() *Registry {
	return &Registry{
		table: idtable.New(func(c *Command, id uint16) {
			c.id = id
			c.bound = true
		}),
	}
}

// Register queues c for an id. Commands must be registered in the same order
// on every peer.
func (r *Registry) Register(c *Command) {
	r.table.Register(c)
}

// Assign gives c an id. Host only.
func (r *Registry) Assign(c *Command) (uint16, error) {
	id, err := r.table.Assign(c)
	if err != nil {
		return 0, fmt.Errorf("could not assign id to %s: %w", c.Name, err)
	}
	return id, nil
}

// Resolve returns the command bound to id, binding the oldest registered
// command on first use.
func (r *Registry) Resolve(id uint16) (*Command, error) {
	c, err := r.table.Resolve(id)
	if errors.Is(err, idtable.ErrUnknownID) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, id)
	}
	return c, err
}

// Expect binds id to the oldest registered value, or to the next one
// registered if there is none yet.
func (r *Registry) Expect(id uint16) {
	r.table.Expect(id)
}

func (r *Registry) Lookup(id uint16) (*Command, bool) {
	return r.table.Lookup(id)
}

// IDs returns the bound ids in the order they were assigned.
func (r *Registry) IDs() []uint16 {
	return r.table.IDs()
}

func (r *Registry) Len() int {
	return r.table.Len()
}

// Request builds the message that asks the host to execute c with its
// current value and marks c as waiting for the reply.
func (r *Registry) Request(c *Command) (*protocol.ExecuteCommand, error) {
	id, ok := c.ID()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSynchronized, c.Name)
	}
	data, err := c.encodeValue(c.value)
	if err != nil {
		return nil, err
	}
	c.waiting = true
	return &protocol.ExecuteCommand{CommandID: id, Data: data}, nil
}

// Reply is the host's answer to a request. Broadcast replies go to every
// client, the others only to the caller.
type Reply struct {
	Command   *Command
	Message   *protocol.ExecuteCommand
	Broadcast bool
}

// Serve executes a request on the host. Only ids the host assigned are
// served; an id a client made up never binds a registered command.
//
// A command that ran and has an Apply function is broadcast to all clients
// with the computed value. Anything else (no Apply, or a false
// Precondition) is acknowledged to the caller only, so the caller never
// waits for a reply that is not coming.
func (r *Registry) Serve(msg *protocol.ExecuteCommand) (Reply, error) {
	c, ok := r.table.Lookup(msg.CommandID)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %d", ErrUnknownCommand, msg.CommandID)
	}
	in, err := c.decodeValue(msg.Data)
	if err != nil {
		return Reply{}, err
	}

	out, ran := c.run(in)
	if !ran || c.Apply == nil {
		return Reply{
			Command: c,
			Message: &protocol.ExecuteCommand{CommandID: msg.CommandID},
		}, nil
	}

	data, err := c.encodeValue(out)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Command:   c,
		Message:   &protocol.ExecuteCommand{OnClients: true, CommandID: msg.CommandID, Data: data},
		Broadcast: true,
	}, nil
}

// Receive handles a host reply on a client: values are applied, and the
// waiting flag is cleared either way.
func (r *Registry) Receive(msg *protocol.ExecuteCommand) (*Command, error) {
	c, err := r.Resolve(msg.CommandID)
	if err != nil {
		return nil, err
	}
	v, err := c.decodeValue(msg.Data)
	if err != nil {
		return c, err
	}

	if msg.OnClients || msg.Data != nil {
		c.value = v
		if c.Apply != nil {
			c.Apply(v)
		}
	}
	c.waiting = false
	return c, nil
}

// ExecuteLocally runs c without a network round trip.
func (r *Registry) ExecuteLocally(c *Command) {
	out, ran := c.run(c.value)
	if ran && c.Apply != nil {
		c.value = out
		c.Apply(out)
	}
	c.waiting = false
}
