package transport

import "math/bits"

// Token is a position on the cluster's hash ring. Cassandra/Scylla use a
// signed 64-bit Murmur3-derived token space.
type Token int64

// MurmurToken hashes a routing key with the Murmur3 variant Cassandra uses
// for the random partitioner, per spec §6's token function collaborator.
func MurmurToken(partitionKey []byte) Token {
	return Token(murmur3Sum64(partitionKey))
}

// murmur3Sum64 is the 128-bit x64 Murmur3 hash, first 64 bits: h1 after
// the final mixing, reinterpreted as a signed int64. No value is remapped;
// MinInt64 is returned as is.
func murmur3Sum64(data []byte) int64 {
	const (
		c1 = 0x87c37b91114253d5
		c2 = 0x4cf5ad432745937f
	)

	length := len(data)
	nblocks := length / 16

	var h1, h2 uint64

	for i := 0; i < nblocks; i++ {
		off := i * 16
		k1 := load64(data, off)
		k2 := load64(data, off+8)

		k1 *= c1
		k1 = rotl64(k1, 31)
		k1 *= c2
		h1 ^= k1

		h1 = rotl64(h1, 27)
		h1 += h2
		h1 = h1*5 + 0x52dce729

		k2 *= c2
		k2 = rotl64(k2, 33)
		k2 *= c1
		h2 ^= k2

		h2 = rotl64(h2, 31)
		h2 += h1
		h2 = h2*5 + 0x38495ab5
	}

	tail := data[nblocks*16:]
	var k1, k2 uint64
	switch len(tail) {
	case 15:
		k2 ^= uint64(tail[14]) << 48
		fallthrough
	case 14:
		k2 ^= uint64(tail[13]) << 40
		fallthrough
	case 13:
		k2 ^= uint64(tail[12]) << 32
		fallthrough
	case 12:
		k2 ^= uint64(tail[11]) << 24
		fallthrough
	case 11:
		k2 ^= uint64(tail[10]) << 16
		fallthrough
	case 10:
		k2 ^= uint64(tail[9]) << 8
		fallthrough
	case 9:
		k2 ^= uint64(tail[8])
		k2 *= c2
		k2 = rotl64(k2, 33)
		k2 *= c1
		h2 ^= k2
		fallthrough
	case 8:
		k1 ^= uint64(tail[7]) << 56
		fallthrough
	case 7:
		k1 ^= uint64(tail[6]) << 48
		fallthrough
	case 6:
		k1 ^= uint64(tail[5]) << 40
		fallthrough
	case 5:
		k1 ^= uint64(tail[4]) << 32
		fallthrough
	case 4:
		k1 ^= uint64(tail[3]) << 24
		fallthrough
	case 3:
		k1 ^= uint64(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint64(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint64(tail[0])
		k1 *= c1
		k1 = rotl64(k1, 31)
		k1 *= c2
		h1 ^= k1
	}

	h1 ^= uint64(length)
	h2 ^= uint64(length)

	h1 += h2
	h2 += h1

	h1 = fmix64(h1)
	h2 = fmix64(h2)

	h1 += h2

	if int64(h1) == -9223372036854775808 {
		return -9223372036854775808
	}
	return int64(h1)
}

func load64(b []byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[off+i]) << (8 * i)
	}
	return v
}

func rotl64(x uint64, r uint) uint64 { return (x << r) | (x >> (64 - r)) }

func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// ScyllaShardToken maps a ring token to a Scylla shard id, given the
// server-advertised shard count: the signed token is rebiased into
// [0, 2^64) and the top 64 bits of its 128-bit product with nrShards give
// a value in [0, nrShards) (spec §3's biased function).
func ScyllaShardToken(token Token, nrShards int) int {
	if nrShards <= 0 {
		return 0
	}
	biased := uint64(token) ^ (uint64(1) << 63)
	hi, _ := bits.Mul64(biased, uint64(nrShards))
	return int(hi)
}
