package response

import "github.com/kulezi/cqldriver/frame"

// Authenticate asks the client to begin a SASL exchange with the named
// authenticator class (commonly org.apache.cassandra.auth.PasswordAuthenticator).
type Authenticate struct {
	AuthenticatorClass string
}

func (*Authenticate) OpCode() frame.OpCode { return frame.OpAuthenticate }

func ParseAuthenticate(b *frame.Buffer) *Authenticate {
	return &Authenticate{AuthenticatorClass: b.ReadString()}
}

// AuthChallenge carries one intermediate SASL challenge from the server.
type AuthChallenge struct {
	Token []byte
}

func (*AuthChallenge) OpCode() frame.OpCode { return frame.OpAuthChallenge }

func ParseAuthChallenge(b *frame.Buffer) *AuthChallenge {
	return &AuthChallenge{Token: b.ReadBytes()}
}

// AuthSuccess terminates a successful SASL exchange.
type AuthSuccess struct {
	Token []byte
}

func (*AuthSuccess) OpCode() frame.OpCode { return frame.OpAuthSuccess }

func ParseAuthSuccess(b *frame.Buffer) *AuthSuccess {
	return &AuthSuccess{Token: b.ReadBytes()}
}
