package frame

import (
	"math/big"

	inf "gopkg.in/inf.v0"
)

// Decimal on the wire is a 4-byte signed scale followed by an
// arbitrary-precision two's-complement big-endian unscaled integer; the
// value equals unscaled * 10^(-scale). The codec's default runtime
// representation is *inf.Dec (gopkg.in/inf.v0), which is itself arbitrary
// precision and therefore never overflows on decode.
func EncodeDecimal(d *inf.Dec) []byte {
	scale := d.Scale()
	unscaled := d.UnscaledBig()

	var b Buffer
	b.WriteInt(Int(scale))
	writeVarint(&b, unscaled)
	return b.Bytes()
}

func DecodeDecimal(data []byte) (*inf.Dec, error) {
	var b Buffer
	b.Write(data)
	scale := b.ReadInt()
	unscaled, err := readVarint(&b, len(data)-4)
	if err != nil {
		return nil, err
	}
	return inf.NewDecBig(unscaled, inf.Scale(scale)), nil
}

// fixedDecimalMaxUnscaled is 2^96 - 1, the largest magnitude representable
// by a 96-bit unsigned mantissa (the .NET System.Decimal convention this
// conversion is modeled on).
var fixedDecimalMaxUnscaled = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))

const fixedDecimalMaxScale = 28

// FixedDecimal is a host fixed-precision decimal: a signed integer
// magnitude of at most 96 bits and a scale in 0..28, matching the
// conventional fixed-decimal representation many host languages expose.
type FixedDecimal struct {
	Unscaled *big.Int
	Scale    int32
}

// ToFixedDecimal converts an arbitrary-precision unscaled integer and
// scale into a FixedDecimal, failing with Overflow when the magnitude or
// scale cannot be represented (spec §4.1, §8).
func ToFixedDecimal(unscaled *big.Int, scale int32) (FixedDecimal, error) {
	if scale < 0 || scale > fixedDecimalMaxScale {
		return FixedDecimal{}, codecErrorf(Overflow, "scale %d out of representable range [0,%d]", scale, fixedDecimalMaxScale)
	}
	abs := new(big.Int).Abs(unscaled)
	if abs.Cmp(fixedDecimalMaxUnscaled) > 0 {
		return FixedDecimal{}, codecErrorf(Overflow, "unscaled magnitude %s exceeds 96-bit range", unscaled.String())
	}
	return FixedDecimal{Unscaled: new(big.Int).Set(unscaled), Scale: scale}, nil
}

func (d FixedDecimal) String() string {
	return inf.NewDecBig(d.Unscaled, inf.Scale(d.Scale)).String()
}
