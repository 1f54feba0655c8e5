package response

import (
	"fmt"

	"github.com/kulezi/cqldriver/frame"
)

// Error codes, spec §4.2/§7.
const (
	ErrServerError         frame.Int = 0x0000
	ErrProtocol            frame.Int = 0x000A
	ErrAuthentication      frame.Int = 0x0100
	ErrUnavailable         frame.Int = 0x1000
	ErrOverloaded          frame.Int = 0x1001
	ErrIsBootstrapping     frame.Int = 0x1002
	ErrTruncateError       frame.Int = 0x1003
	ErrWriteTimeout        frame.Int = 0x1100
	ErrReadTimeout         frame.Int = 0x1200
	ErrReadFailure         frame.Int = 0x1300
	ErrFunctionFailure     frame.Int = 0x1400
	ErrWriteFailure        frame.Int = 0x1500
	ErrSyntaxError         frame.Int = 0x2000
	ErrUnauthorized        frame.Int = 0x2100
	ErrInvalid             frame.Int = 0x2200
	ErrConfigError         frame.Int = 0x2300
	ErrAlreadyExists       frame.Int = 0x2400
	ErrUnprepared          frame.Int = 0x2500
	ErrCASWriteUnknown     frame.Int = 0x1700
)

// simpleError is the generic (code, message) shape most error codes share.
type simpleError struct {
	code frame.Int
	msg  string
}

func (e *simpleError) Error() string    { return fmt.Sprintf("server error %#x: %s", e.code, e.msg) }
func (e *simpleError) Code() frame.Int  { return e.code }
func (e *simpleError) OpCode() frame.OpCode { return frame.OpError }

// Unavailable is ERROR 0x1000: the coordinator could not find enough
// replicas alive to satisfy the requested consistency level.
type Unavailable struct {
	simpleError
	Consistency frame.Consistency
	Required    frame.Int
	Alive       frame.Int
}

// WriteTimeout is ERROR 0x1100.
type WriteTimeout struct {
	simpleError
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	WriteType   string
}

// ReadTimeout is ERROR 0x1200.
type ReadTimeout struct {
	simpleError
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	DataPresent bool
}

// ReadFailure is ERROR 0x1300.
type ReadFailure struct {
	simpleError
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	NumFailures frame.Int
	DataPresent bool
}

// WriteFailure is ERROR 0x1500.
type WriteFailure struct {
	simpleError
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	NumFailures frame.Int
	WriteType   string
}

// Unprepared is ERROR 0x2500: the coordinator forgot the prepared
// statement. The pipeline reacts by repreparing QueryID and retrying.
type Unprepared struct {
	simpleError
	QueryID []byte
}

// AlreadyExists is ERROR 0x2400, raised on schema-creation DDL races.
type AlreadyExists struct {
	simpleError
	Keyspace string
	Table    string
}

func ParseError(b *frame.Buffer) frame.Response {
	code := b.ReadInt()
	msg := b.ReadString()
	base := simpleError{code: code, msg: msg}

	switch code {
	case ErrUnavailable:
		return &Unavailable{
			simpleError: base,
			Consistency: b.ReadShort(),
			Required:    b.ReadInt(),
			Alive:       b.ReadInt(),
		}
	case ErrWriteTimeout:
		return &WriteTimeout{
			simpleError: base,
			Consistency: b.ReadShort(),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			WriteType:   b.ReadString(),
		}
	case ErrReadTimeout:
		return &ReadTimeout{
			simpleError: base,
			Consistency: b.ReadShort(),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			DataPresent: b.ReadByte() != 0,
		}
	case ErrReadFailure:
		return &ReadFailure{
			simpleError: base,
			Consistency: b.ReadShort(),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			NumFailures: b.ReadInt(),
			DataPresent: b.ReadByte() != 0,
		}
	case ErrWriteFailure:
		return &WriteFailure{
			simpleError: base,
			Consistency: b.ReadShort(),
			Received:    b.ReadInt(),
			BlockFor:    b.ReadInt(),
			NumFailures: b.ReadInt(),
			WriteType:   b.ReadString(),
		}
	case ErrUnprepared:
		return &Unprepared{
			simpleError: base,
			QueryID:     b.ReadShortBytes(),
		}
	case ErrAlreadyExists:
		return &AlreadyExists{
			simpleError: base,
			Keyspace:    b.ReadString(),
			Table:       b.ReadString(),
		}
	default:
		return &base
	}
}
