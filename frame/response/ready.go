package response

import "github.com/kulezi/cqldriver/frame"

// Ready is the handshake's terminal success: the connection may now send
// QUERY/PREPARE/EXECUTE/BATCH/REGISTER.
type Ready struct{}

func (*Ready) OpCode() frame.OpCode { return frame.OpReady }

func ParseReady(_ *frame.Buffer) *Ready { return &Ready{} }
