package frame

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeVarint(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		in       int64
		expected []byte
	}{
		{name: "zero", in: 0, expected: []byte{0x00}},
		{name: "one", in: 1, expected: []byte{0x01}},
		{name: "minus one", in: -1, expected: []byte{0xFF}},
		{name: "127", in: 127, expected: []byte{0x7F}},
		{name: "128 needs a leading zero byte", in: 128, expected: []byte{0x00, 0x80}},
		{name: "-128", in: -128, expected: []byte{0x80}},
		{name: "-129", in: -129, expected: []byte{0xFF, 0x7F}},
	}

	for i := 0; i < len(testCases); i++ {
		tc := testCases[i]
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := EncodeVarint(big.NewInt(tc.in))
			if diff := cmp.Diff(out, tc.expected); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestVarintRoundTrip(t *testing.T) {
	t.Parallel()
	values := []int64{0, 1, -1, 127, 128, -128, -129, 1 << 40, -(1 << 40)}
	for _, v := range values {
		in := big.NewInt(v)
		out := DecodeVarint(EncodeVarint(in))
		if out.Cmp(in) != 0 {
			t.Fatalf("round trip of %d produced %s", v, out.String())
		}
	}
}
