package frame

import (
	"math/big"
	"testing"

	inf "gopkg.in/inf.v0"
)

func TestDecimalRoundTrip(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		unscaled int64
		scale    int32
	}{
		{name: "zero", unscaled: 0, scale: 0},
		{name: "positive with scale", unscaled: 12345, scale: 2},
		{name: "negative with scale", unscaled: -12345, scale: 4},
		{name: "negative scale encoded as a negative int32", unscaled: 5, scale: -3},
	}

	for i := 0; i < len(testCases); i++ {
		tc := testCases[i]
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := inf.NewDec(tc.unscaled, inf.Scale(tc.scale))
			encoded := EncodeDecimal(in)
			out, err := DecodeDecimal(encoded)
			if err != nil {
				t.Fatal(err)
			}
			if out.Cmp(in) != 0 {
				t.Fatalf("round trip of %s produced %s", in.String(), out.String())
			}
		})
	}
}

func TestToFixedDecimalOverflow(t *testing.T) {
	t.Parallel()

	if _, err := ToFixedDecimal(big.NewInt(1), -1); err == nil {
		t.Fatal("expected an error for a negative scale")
	}
	if _, err := ToFixedDecimal(big.NewInt(1), fixedDecimalMaxScale+1); err == nil {
		t.Fatal("expected an error for a scale beyond the 96-bit fixed-decimal range")
	}

	tooBig := new(big.Int).Add(fixedDecimalMaxUnscaled, big.NewInt(1))
	if _, err := ToFixedDecimal(tooBig, 0); err == nil {
		t.Fatal("expected an error for a magnitude beyond 96 bits")
	}

	d, err := ToFixedDecimal(fixedDecimalMaxUnscaled, fixedDecimalMaxScale)
	if err != nil {
		t.Fatalf("max representable value should not overflow: %v", err)
	}
	if d.Unscaled.Cmp(fixedDecimalMaxUnscaled) != 0 {
		t.Fatalf("unscaled magnitude mutated: got %s", d.Unscaled.String())
	}
}
