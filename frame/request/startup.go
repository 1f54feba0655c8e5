package request

import "github.com/kulezi/cqldriver/frame"

var _ frame.Request = (*Startup)(nil)

// Startup is the first request sent on every connection: negotiates the
// CQL version and, when a Compressor was configured, the body compression
// algorithm for the rest of the connection's lifetime.
type Startup struct {
	Options frame.StartupOptions
}

func (s *Startup) WriteTo(b *frame.Buffer) {
	m := make(map[string]string, len(s.Options))
	for k, v := range s.Options {
		m[k] = v
	}
	b.WriteStringMap(m)
}

func (*Startup) OpCode() frame.OpCode {
	return frame.OpStartup
}
