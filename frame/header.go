package frame

import "fmt"

// ProtocolVersion is the negotiated native protocol version, 1..5.
type ProtocolVersion byte

const (
	CQLv1 ProtocolVersion = 0x01
	CQLv2 ProtocolVersion = 0x02
	CQLv3 ProtocolVersion = 0x03
	CQLv4 ProtocolVersion = 0x04
	CQLv5 ProtocolVersion = 0x05

	directionMask = 0x80
	versionMask   = 0x7F

	minProtocolVersion = CQLv1
	maxProtocolVersion = CQLv5
)

// SupportsNamedValues reports whether v supports named query parameters
// (protocol >= 3).
func (v ProtocolVersion) SupportsNamedValues() bool { return v >= CQLv3 }

// SupportsUnset reports whether v supports the UNSET bind marker value
// (protocol >= 4).
func (v ProtocolVersion) SupportsUnset() bool { return v >= CQLv4 }

// SupportsKeyspaceInRequest reports whether QUERY/EXECUTE/BATCH may carry a
// per-request keyspace override (protocol >= 5).
func (v ProtocolVersion) SupportsKeyspaceInRequest() bool { return v >= CQLv5 }

// SupportsResultMetadataID reports whether PREPARED/RESULT carry a
// result-metadata-id (protocol >= 5).
func (v ProtocolVersion) SupportsResultMetadataID() bool { return v >= CQLv5 }

// SupportsContinuousPaging reports whether the continuous-paging flag is
// meaningful for this version (protocol >= 5, DSE/Scylla extension point).
func (v ProtocolVersion) SupportsContinuousPaging() bool { return v >= CQLv5 }

// HeaderSize is the on-wire header length for protocol >= 3 (9 bytes: a
// 2-byte stream id). Protocol 1-2 use a 1-byte stream id, an 8-byte header.
func (v ProtocolVersion) HeaderSize() int {
	if v < CQLv3 {
		return 8
	}
	return 9
}

func (v ProtocolVersion) Valid() bool {
	return v >= minProtocolVersion && v <= maxProtocolVersion
}

// HeaderFlags are the per-frame bit flags carried in header byte 1.
type HeaderFlags byte

const (
	FlagCompression   HeaderFlags = 0x01
	FlagTracing       HeaderFlags = 0x02
	FlagCustomPayload HeaderFlags = 0x04
	FlagWarning       HeaderFlags = 0x08
	FlagUseBeta       HeaderFlags = 0x10
)

// Opcodes used by the core (spec §4.2).
const (
	OpError         OpCode = 0x00
	OpStartup       OpCode = 0x01
	OpReady         OpCode = 0x02
	OpAuthenticate  OpCode = 0x03
	OpOptions       OpCode = 0x05
	OpSupported     OpCode = 0x06
	OpQuery         OpCode = 0x07
	OpResult        OpCode = 0x08
	OpPrepare       OpCode = 0x09
	OpExecute       OpCode = 0x0A
	OpRegister      OpCode = 0x0B
	OpEvent         OpCode = 0x0C
	OpBatch         OpCode = 0x0D
	OpAuthChallenge OpCode = 0x0E
	OpAuthResponse  OpCode = 0x0F
	OpAuthSuccess   OpCode = 0x10
)

// Consistency is the consistency level carried on QUERY/EXECUTE/BATCH.
type Consistency = Short

const (
	ANY         Consistency = 0x0000
	ONE         Consistency = 0x0001
	TWO         Consistency = 0x0002
	THREE       Consistency = 0x0003
	QUORUM      Consistency = 0x0004
	ALL         Consistency = 0x0005
	LOCALQUORUM Consistency = 0x0006
	EACHQUORUM  Consistency = 0x0007
	SERIAL      Consistency = 0x0008
	LOCALSERIAL Consistency = 0x0009
	LOCALONE    Consistency = 0x000A
)

// Header is the decoded frame header, independent of protocol version
// (the on-wire stream-id width differs but the in-memory shape does not).
type Header struct {
	Version  ProtocolVersion
	Flags    HeaderFlags
	StreamID StreamID
	OpCode   OpCode
	Length   Int
}

// IsResponse reports whether the direction bit marks this as a
// server-to-client frame.
func (h Header) IsResponse() bool {
	return byte(h.Version)&directionMask != 0
}

// WriteTo writes the header (version/direction, flags, stream id, opcode)
// followed by h.Length, which the caller sets to the encoded body length
// before calling; the length occupies bytes [5:9) (or [4:8) on v1/v2).
func (h Header) WriteTo(b *Buffer) {
	versionByte := byte(h.Version)
	if h.IsResponse() {
		versionByte |= directionMask
	}
	b.WriteByte(versionByte)
	b.WriteByte(byte(h.Flags))
	if h.Version < CQLv3 {
		b.WriteByte(byte(h.StreamID))
	} else {
		b.WriteShort(Short(uint16(h.StreamID)))
	}
	b.WriteByte(h.OpCode)
	b.WriteInt(h.Length)
}

// ParseHeader decodes a header previously read into b by the connection
// reader loop.
func ParseHeader(b *Buffer) Header {
	var h Header
	versionByte := b.ReadByte()
	h.Version = ProtocolVersion(versionByte & versionMask)
	h.Flags = HeaderFlags(b.ReadByte())
	if h.Version < CQLv3 {
		h.StreamID = StreamID(int8(b.ReadByte()))
	} else {
		h.StreamID = StreamID(b.ReadShort())
	}
	h.OpCode = b.ReadByte()
	h.Length = b.ReadInt()
	return h
}

// HeaderSize is the size, in bytes, to read off the wire before the
// length field is known: version/direction, flags, stream id, opcode and
// length fields combined, for protocol >= 3. v1/v2 headers are 8 bytes
// (see ProtocolVersion.HeaderSize).
const HeaderSize = 9

func (h Header) String() string {
	return fmt.Sprintf("Header{Version: %#x, Flags: %#x, StreamID: %d, OpCode: %#x, Length: %d}",
		byte(h.Version), byte(h.Flags), h.StreamID, h.OpCode, h.Length)
}
