package response

import (
	"net"

	"github.com/kulezi/cqldriver/frame"
)

// Event is an unsolicited server push delivered on a REGISTERed connection:
// TOPOLOGY_CHANGE, STATUS_CHANGE or SCHEMA_CHANGE.
type Event struct {
	Type string

	// TOPOLOGY_CHANGE / STATUS_CHANGE
	ChangeType string
	Address    net.IP
	Port       int

	// SCHEMA_CHANGE
	SchemaChangeType string
	Target           string
	Keyspace         string
	Name             string
	ArgTypes         []string
}

func (*Event) OpCode() frame.OpCode { return frame.OpEvent }

func ParseEvent(b *frame.Buffer) *Event {
	e := &Event{Type: b.ReadString()}
	switch e.Type {
	case "TOPOLOGY_CHANGE", "STATUS_CHANGE":
		e.ChangeType = b.ReadString()
		e.Address, e.Port = b.ReadInet()
	case "SCHEMA_CHANGE":
		e.SchemaChangeType = b.ReadString()
		e.Target = b.ReadString()
		switch e.Target {
		case "KEYSPACE":
			e.Keyspace = b.ReadString()
		case "TABLE", "TYPE":
			e.Keyspace = b.ReadString()
			e.Name = b.ReadString()
		case "FUNCTION", "AGGREGATE":
			e.Keyspace = b.ReadString()
			e.Name = b.ReadString()
			e.ArgTypes = b.ReadStringList()
		}
	}
	return e
}
