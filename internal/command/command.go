// Package command implements host authoritative remote calls. A Command is
// created by the game on every peer in the same order; the host assigns its
// id and clients bind that id to their own copy on first use.
package command

import (
	"errors"
	"fmt"

	"github.com/blukai/lanparty/internal/codec"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNotSynchronized = errors.New("command is not synchronized")
)

// TransferOption selects how a command travels. The zero value is
// ReliableInOrder.
type TransferOption uint8

const (
	TransferReliableInOrder TransferOption = iota
	TransferNone
	TransferReliable
	TransferInOrder
	TransferChat
)

func (t TransferOption) String() string {
	switch t {
	case TransferReliableInOrder:
		return "reliable-in-order"
	case TransferNone:
		return "none"
	case TransferReliable:
		return "reliable"
	case TransferInOrder:
		return "in-order"
	case TransferChat:
		return "chat"
	default:
		return fmt.Sprintf("transfer(%d)", uint8(t))
	}
}

// ExecuteFunc runs on the host. It receives the value sent by the caller (nil
// for commands without payload) and returns the value clients apply.
type ExecuteFunc func(v codec.Value) codec.Value

// ApplyFunc runs on clients with the value computed by the host.
type ApplyFunc func(v codec.Value)

type Command struct {
	Name     string
	Kind     codec.Kind
	Transfer TransferOption

	// Precondition, if set, is evaluated on the host. When it reports false
	// Execute and Apply are skipped and the caller is only acknowledged.
	Precondition func() bool
	Execute      ExecuteFunc
	Apply        ApplyFunc

	value   codec.Value
	id      uint16
	bound   bool
	waiting bool
}

// New makes a command carrying values of kind. Use codec.KindNone for
// commands without payload.
func New(name string, kind codec.Kind, execute ExecuteFunc, apply ApplyFunc) *Command {
	return &Command{
		Name:    name,
		Kind:    kind,
		Execute: execute,
		Apply:   apply,
	}
}

// ID returns the host assigned id. ok is false until the command has been
// synchronized.
func (c *Command) ID() (id uint16, ok bool) {
	return c.id, c.bound
}

func (c *Command) Value() codec.Value {
	return c.value
}

// SetValue sets the payload of the next call. A nil v sends no payload.
func (c *Command) SetValue(v codec.Value) error {
	if v != nil {
		if !c.Kind.Valid() {
			return fmt.Errorf("%w: command %q declares %s", codec.ErrUnsupportedValueType, c.Name, c.Kind)
		}
		if v.Kind() != c.Kind {
			return fmt.Errorf("%w: command %q wants %s, got %s", codec.ErrTypeMismatch, c.Name, c.Kind, v.Kind())
		}
	}
	c.value = v
	return nil
}

// WaitingForServerReply is true between a request and the host's answer.
func (c *Command) WaitingForServerReply() bool {
	return c.waiting
}

func (c *Command) String() string {
	if c.bound {
		return fmt.Sprintf("%s#%d", c.Name, c.id)
	}
	return c.Name
}

func (c *Command) encodeValue(v codec.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := codec.Marshal(c.Kind, v)
	if err != nil {
		return nil, fmt.Errorf("could not encode value of %s: %w", c, err)
	}
	return data, nil
}

func (c *Command) decodeValue(data []byte) (codec.Value, error) {
	if data == nil {
		return nil, nil
	}
	v, err := codec.Unmarshal(data, c.Kind)
	if err != nil {
		return nil, fmt.Errorf("could not decode value of %s: %w", c, err)
	}
	return v, nil
}

// run evaluates the precondition and the execute function. It reports
// whether the command ran.
func (c *Command) run(in codec.Value) (codec.Value, bool) {
	if c.Precondition != nil && !c.Precondition() {
		return in, false
	}
	out := in
	if c.Execute != nil {
		out = c.Execute(in)
	}
	return out, true
}
