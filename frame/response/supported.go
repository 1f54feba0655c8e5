package response

import "github.com/kulezi/cqldriver/frame"

// Supported answers OPTIONS with the server's advertised capabilities:
// CQL versions, compression algorithms, and (on Scylla) the
// SCYLLA_NR_SHARDS/SCYLLA_SHARD_AWARE_PORT[_SSL] sharding hints.
type Supported struct {
	Options map[string]frame.StringList
}

func (*Supported) OpCode() frame.OpCode { return frame.OpSupported }

func ParseSupported(b *frame.Buffer) *Supported {
	return &Supported{Options: b.ReadStringMultiMap()}
}

func (s *Supported) first(key string) (string, bool) {
	if v := s.Options[key]; len(v) > 0 {
		return v[0], true
	}
	return "", false
}

// ShardingInfo extracts the Scylla sharding hints from SUPPORTED, if
// present (spec §3's Sharding info).
func (s *Supported) ShardingInfo() (nrShards int, shardAwarePort, shardAwarePortSSL string, ok bool) {
	n, has := s.first("SCYLLA_NR_SHARDS")
	if !has {
		return 0, "", "", false
	}
	var shards int
	for _, c := range n {
		if c < '0' || c > '9' {
			return 0, "", "", false
		}
		shards = shards*10 + int(c-'0')
	}
	port, _ := s.first("SCYLLA_SHARD_AWARE_PORT")
	portSSL, _ := s.first("SCYLLA_SHARD_AWARE_PORT_SSL")
	return shards, port, portSSL, true
}
