package request

import "github.com/kulezi/cqldriver/frame"

var _ frame.Request = (*AuthResponse)(nil)

// AuthResponse carries one round of a SASL exchange, initiated by the
// server's AUTHENTICATE/AUTH_CHALLENGE and answered by the client.
type AuthResponse struct {
	Token []byte
}

func (a *AuthResponse) WriteTo(b *frame.Buffer) {
	b.WriteBytes(a.Token)
}

func (*AuthResponse) OpCode() frame.OpCode {
	return frame.OpAuthResponse
}
