//go:build windows

package httpauth

import (
	"errors"

	"github.com/Azure/go-ntlmssp"
)

// ntlmProvider backs the Negotiate scheme on Windows with a pure-Go
// NTLM message exchange (github.com/Azure/go-ntlmssp) rather than a
// real SSPI call: cgo-free Go has no way to reach SSPI directly, and
// the retrieved example pack carries no cgo SSPI binding, so this
// stands in for it per DESIGN.md. It answers as "NTLM" on the wire
// (name), while challenges still reach it through challenge.go's
// "Negotiate" scheme leader; an "NTLM" challenge leader is not
// recognized by the scanner.
type ntlmProvider struct{}

func init() {
	platformProvider = &ntlmProvider{}
}

func (*ntlmProvider) name() string { return "NTLM" }

// ntlmHandshake tracks which leg of the two-message exchange is next.
type ntlmHandshake struct {
	sentNegotiate bool
}

func (*ntlmProvider) initSecContext(ns *negotiateState, target string, in []byte) (out []byte, complete bool, err error) {
	hs, _ := ns.providerCtx.(*ntlmHandshake)
	if hs == nil {
		hs = &ntlmHandshake{}
		ns.providerCtx = hs
	}

	if !hs.sentNegotiate {
		msg, err := ntlmssp.NewNegotiateMessage("", "")
		if err != nil {
			return nil, false, err
		}
		hs.sentNegotiate = true
		return msg, false, nil
	}

	if len(in) == 0 {
		return nil, false, errors.New("NTLM challenge message missing")
	}

	msg, err := ntlmssp.NewAuthenticateMessage(in, ns.username, ns.password, nil)
	if err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

// verifyMutual is a no-op: NTLM as exchanged here (RFC 4178 Negotiate
// wrapping a pure message-type-1/2/3 NTLM handshake) has no separate
// mutual-auth confirmation message beyond the server accepting the
// type-3 message with a 2xx.
func (*ntlmProvider) verifyMutual(ns *negotiateState, in []byte) error {
	return nil
}

func (*ntlmProvider) deleteContext(ns *negotiateState) {
	ns.providerCtx = nil
}
