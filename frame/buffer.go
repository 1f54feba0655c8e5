// Package frame implements the Cassandra/Scylla native protocol wire format:
// primitive encodings, the frame header, and the request/response message
// bodies built on top of them.
package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
)

// Byte, Short, Int, Long are the fixed-width integer primitives of the
// protocol; names follow the spec rather than Go's numeric types so codec
// code reads the same as the protocol document.
type (
	Byte  = uint8
	Short = uint16
	Int   = int32
	Long  = int64

	StreamID = int16
	OpCode   = uint8

	Bytes      []byte
	StringList []string
	UUID       [16]byte
)

// Buffer is a read/write cursor over a byte slice with a sticky error: once
// any Read/Write primitive fails, every subsequent call is a no-op and
// Error() reports the first failure. This lets decoders chain calls without
// checking an error after every field and still detect truncated or
// malformed frames (FrameFormat).
type Buffer struct {
	buf bytes.Buffer
	err error
}

func (b *Buffer) Reset() {
	b.buf.Reset()
	b.err = nil
}

func (b *Buffer) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *Buffer) Len() int {
	return b.buf.Len()
}

func (b *Buffer) Error() error {
	return b.err
}

func (b *Buffer) recordErr(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// Write appends raw bytes, used by callers that already have encoded bytes
// on hand (bound-value payloads, pre-serialized bodies).
func (b *Buffer) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	return b.buf.Write(p)
}

func (b *Buffer) WriteByte(v byte) {
	if b.err != nil {
		return
	}
	b.recordErr(b.buf.WriteByte(v))
}

func (b *Buffer) WriteShort(v Short) {
	if b.err != nil {
		return
	}
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	_, err := b.buf.Write(tmp[:])
	b.recordErr(err)
}

func (b *Buffer) WriteInt(v Int) {
	if b.err != nil {
		return
	}
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	_, err := b.buf.Write(tmp[:])
	b.recordErr(err)
}

func (b *Buffer) WriteLong(v Long) {
	if b.err != nil {
		return
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	_, err := b.buf.Write(tmp[:])
	b.recordErr(err)
}

func (b *Buffer) WriteString(s string) {
	if b.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		b.recordErr(fmt.Errorf("string too long: %d bytes", len(s)))
		return
	}
	b.WriteShort(Short(len(s)))
	_, err := b.buf.WriteString(s)
	b.recordErr(err)
}

func (b *Buffer) WriteLongString(s string) {
	if b.err != nil {
		return
	}
	b.WriteInt(Int(len(s)))
	_, err := b.buf.WriteString(s)
	b.recordErr(err)
}

func (b *Buffer) WriteStringList(l StringList) {
	if b.err != nil {
		return
	}
	b.WriteShort(Short(len(l)))
	for _, s := range l {
		b.WriteString(s)
	}
}

func (b *Buffer) WriteBytes(v Bytes) {
	if b.err != nil {
		return
	}
	if v == nil {
		b.WriteInt(-1)
		return
	}
	b.WriteInt(Int(len(v)))
	_, err := b.buf.Write(v)
	b.recordErr(err)
}

func (b *Buffer) WriteShortBytes(v Bytes) {
	if b.err != nil {
		return
	}
	b.WriteShort(Short(len(v)))
	_, err := b.buf.Write(v)
	b.recordErr(err)
}

func (b *Buffer) WriteStringMap(m map[string]string) {
	if b.err != nil {
		return
	}
	b.WriteShort(Short(len(m)))
	for k, v := range m {
		b.WriteString(k)
		b.WriteString(v)
	}
}

func (b *Buffer) WriteStringMultiMap(m map[string]StringList) {
	if b.err != nil {
		return
	}
	b.WriteShort(Short(len(m)))
	for k, v := range m {
		b.WriteString(k)
		b.WriteStringList(v)
	}
}

func (b *Buffer) WriteBytesMap(m map[string][]byte) {
	if b.err != nil {
		return
	}
	b.WriteShort(Short(len(m)))
	for k, v := range m {
		b.WriteString(k)
		b.WriteBytes(v)
	}
}

func (b *Buffer) WriteUUID(u UUID) {
	if b.err != nil {
		return
	}
	_, err := b.buf.Write(u[:])
	b.recordErr(err)
}

func (b *Buffer) WriteInet(ip net.IP, port int) {
	if b.err != nil {
		return
	}
	v4 := ip.To4()
	if v4 != nil {
		b.WriteByte(4)
		_, err := b.buf.Write(v4)
		b.recordErr(err)
	} else {
		b.WriteByte(16)
		_, err := b.buf.Write(ip.To16())
		b.recordErr(err)
	}
	b.WriteInt(Int(port))
}

func (b *Buffer) ReadByte() byte {
	if b.err != nil {
		return 0
	}
	v, err := b.buf.ReadByte()
	b.recordErr(err)
	return v
}

func (b *Buffer) ReadShort() Short {
	if b.err != nil {
		return 0
	}
	var tmp [2]byte
	if _, err := io.ReadFull(&b.buf, tmp[:]); err != nil {
		b.recordErr(err)
		return 0
	}
	return binary.BigEndian.Uint16(tmp[:])
}

func (b *Buffer) ReadInt() Int {
	if b.err != nil {
		return 0
	}
	var tmp [4]byte
	if _, err := io.ReadFull(&b.buf, tmp[:]); err != nil {
		b.recordErr(err)
		return 0
	}
	return Int(binary.BigEndian.Uint32(tmp[:]))
}

func (b *Buffer) ReadLong() Long {
	if b.err != nil {
		return 0
	}
	var tmp [8]byte
	if _, err := io.ReadFull(&b.buf, tmp[:]); err != nil {
		b.recordErr(err)
		return 0
	}
	return Long(binary.BigEndian.Uint64(tmp[:]))
}

func (b *Buffer) ReadString() string {
	if b.err != nil {
		return ""
	}
	n := b.ReadShort()
	if b.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&b.buf, buf); err != nil {
		b.recordErr(err)
		return ""
	}
	return string(buf)
}

func (b *Buffer) ReadLongString() string {
	if b.err != nil {
		return ""
	}
	n := b.ReadInt()
	if b.err != nil || n < 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&b.buf, buf); err != nil {
		b.recordErr(err)
		return ""
	}
	return string(buf)
}

func (b *Buffer) ReadStringList() StringList {
	if b.err != nil {
		return nil
	}
	n := b.ReadShort()
	l := make(StringList, 0, n)
	for i := Short(0); i < n && b.err == nil; i++ {
		l = append(l, b.ReadString())
	}
	return l
}

// ReadBytes reads the [bytes] primitive: a 4-byte length (negative meaning
// null) followed by that many raw bytes.
func (b *Buffer) ReadBytes() Bytes {
	if b.err != nil {
		return nil
	}
	n := b.ReadInt()
	if b.err != nil {
		return nil
	}
	if n < 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&b.buf, buf); err != nil {
		b.recordErr(err)
		return nil
	}
	return buf
}

func (b *Buffer) ReadShortBytes() Bytes {
	if b.err != nil {
		return nil
	}
	n := b.ReadShort()
	if b.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&b.buf, buf); err != nil {
		b.recordErr(err)
		return nil
	}
	return buf
}

func (b *Buffer) ReadStringMap() map[string]string {
	if b.err != nil {
		return nil
	}
	n := b.ReadShort()
	m := make(map[string]string, n)
	for i := Short(0); i < n && b.err == nil; i++ {
		k := b.ReadString()
		v := b.ReadString()
		m[k] = v
	}
	return m
}

func (b *Buffer) ReadStringMultiMap() map[string]StringList {
	if b.err != nil {
		return nil
	}
	n := b.ReadShort()
	m := make(map[string]StringList, n)
	for i := Short(0); i < n && b.err == nil; i++ {
		k := b.ReadString()
		v := b.ReadStringList()
		m[k] = v
	}
	return m
}

func (b *Buffer) ReadBytesMap() map[string][]byte {
	if b.err != nil {
		return nil
	}
	n := b.ReadShort()
	m := make(map[string][]byte, n)
	for i := Short(0); i < n && b.err == nil; i++ {
		k := b.ReadString()
		v := b.ReadBytes()
		m[k] = v
	}
	return m
}

func (b *Buffer) ReadUUID() UUID {
	var u UUID
	if b.err != nil {
		return u
	}
	if _, err := io.ReadFull(&b.buf, u[:]); err != nil {
		b.recordErr(err)
	}
	return u
}

func (b *Buffer) ReadInet() (net.IP, int) {
	if b.err != nil {
		return nil, 0
	}
	n := b.ReadByte()
	if b.err != nil {
		return nil, 0
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&b.buf, buf); err != nil {
		b.recordErr(err)
		return nil, 0
	}
	port := b.ReadInt()
	return net.IP(buf), int(port)
}

// Consume returns the n raw bytes ahead without interpretation, used for
// opaque bodies (compressed payloads, paging state, raw routing key bytes).
func (b *Buffer) Consume(n int) []byte {
	if b.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&b.buf, buf); err != nil {
		b.recordErr(err)
		return nil
	}
	return buf
}

// Remaining returns the number of unread bytes; used to enforce the
// full-body-consumption invariant (FrameFormat on leftover bytes).
func (b *Buffer) Remaining() int {
	return b.buf.Len()
}

// CopyBuffer writes b's contents to w, matching the teacher's use of a
// Buffer as scratch space handed straight to the socket.
func CopyBuffer(b *Buffer, w io.Writer) (int64, error) {
	return b.buf.WriteTo(w)
}

// BufferWriter exposes b as an io.Writer so it can be filled directly by
// io.CopyN from a socket (the connection reader's use in transport/conn.go).
func BufferWriter(b *Buffer) io.Writer {
	return &b.buf
}
