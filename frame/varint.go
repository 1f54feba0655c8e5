package frame

import "math/big"

// writeVarint encodes v as a minimal-length two's-complement big-endian
// integer, the wire representation shared by Varint and the unscaled part
// of Decimal.
func writeVarint(b *Buffer, v *big.Int) {
	b.Write(encodeVarintBytes(v))
}

func encodeVarintBytes(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{0}
	}
	if v.Sign() > 0 {
		bs := v.Bytes()
		if len(bs) == 0 || bs[0]&0x80 != 0 {
			bs = append([]byte{0}, bs...)
		}
		return bs
	}

	// Negative: two's complement of the minimal-length magnitude.
	mag := new(big.Int).Neg(v)
	mag.Sub(mag, big.NewInt(1))
	nBytes := mag.BitLen()/8 + 1
	mod := new(big.Int).Lsh(big.NewInt(1), uint(nBytes*8))
	twos := new(big.Int).Add(mod, v)
	bs := twos.Bytes()
	for len(bs) < nBytes {
		bs = append([]byte{0xFF}, bs...)
	}
	return bs
}

func readVarint(b *Buffer, n int) (*big.Int, error) {
	data := b.Consume(n)
	if err := b.Error(); err != nil {
		return nil, err
	}
	return decodeVarintBytes(data), nil
}

// DecodeVarint decodes a minimal-length two's-complement big-endian
// integer, as used by Varint and Decimal.
func DecodeVarint(data []byte) *big.Int {
	return decodeVarintBytes(data)
}

func decodeVarintBytes(data []byte) *big.Int {
	if len(data) == 0 {
		return big.NewInt(0)
	}
	v := new(big.Int).SetBytes(data)
	if data[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(data)*8))
		v.Sub(v, mod)
	}
	return v
}

// EncodeVarint is the public minimal-length two's-complement encoder for
// the Varint primitive type.
func EncodeVarint(v *big.Int) []byte {
	return encodeVarintBytes(v)
}
