package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor implements one of the protocol's negotiated body compression
// algorithms. Compress/Decompress operate on the frame body only, never the
// header (spec §2).
type Compressor interface {
	Name() string
	Compress(dst, src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Lz4Compressor prefixes the compressed block with a 4-byte big-endian
// uncompressed length, the convention the protocol spec mandates so the
// decoder can size its destination buffer without guessing.
type Lz4Compressor struct{}

func (Lz4Compressor) Name() string { return "lz4" }

func (Lz4Compressor) Compress(dst, src []byte) ([]byte, error) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(src)))

	bound := lz4.CompressBlockBound(len(src))
	buf := append(dst, hdr[:]...)
	out := make([]byte, bound)

	var c lz4.Compressor
	n, err := c.CompressBlock(src, out)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return append(buf, out[:n]...), nil
}

func (Lz4Compressor) Decompress(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, &FrameFormatError{Msg: "lz4 body shorter than the 4-byte length prefix"}
	}
	n := binary.BigEndian.Uint32(src[:4])
	if n == 0 {
		return []byte{}, nil
	}
	out := make([]byte, n)
	written, err := lz4.UncompressBlock(src[4:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out[:written], nil
}

// SnappyCompressor implements the legacy Snappy body compression scheme,
// which carries no explicit uncompressed-length prefix (Snappy's own block
// format is self-describing).
type SnappyCompressor struct{}

func (SnappyCompressor) Name() string { return "snappy" }

func (SnappyCompressor) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (SnappyCompressor) Decompress(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress: %w", err)
	}
	return out, nil
}

// ZstdCompressor implements the protocol-5 "zstd" body compression option.
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstdCompressor() (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ZstdCompressor{enc: enc, dec: dec}, nil
}

func (*ZstdCompressor) Name() string { return "zstd" }

func (z *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst), nil
}

func (z *ZstdCompressor) Decompress(src []byte) ([]byte, error) {
	return z.dec.DecodeAll(src, nil)
}

// compressBody compresses a whole frame body with c into a new slice.
func compressBody(c Compressor, body []byte) ([]byte, error) {
	return c.Compress(nil, body)
}

// decompressBody is the decoder-side counterpart of compressBody.
func decompressBody(c Compressor, body []byte) ([]byte, error) {
	return c.Decompress(body)
}
