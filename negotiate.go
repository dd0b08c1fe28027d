package httpauth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// negotiateState is the Negotiate/NTLM subset of AuthSession: the
// provider's opaque context handle, the staged outbound token, and
// whether the handshake has reported completion.
type negotiateState struct {
	providerCtx any
	schemeName  string
	token       string
	complete    bool

	// target, username and password are captured once, on the
	// initial challenge: target is the host the provider names the
	// service after, username and password come from the handler and
	// are held for the providers that need explicit credentials (NTLM)
	// rather than an ambient ticket cache (GSS-API/Kerberos). password
	// is cleared once the handshake completes; forgetting the session
	// drops the whole negotiateState.
	target   string
	username string
	password string
}

// negotiateProvider is the platform GSS-API or SSPI backing for the
// Negotiate scheme (spec.md §4.5). Exactly one implementation is
// compiled in, selected by build tag: negotiate_krb5.go on non-Windows
// by default (pure-Go Kerberos/SPNEGO), negotiate_gssapi.go on
// non-Windows when built with -tags gssapi (real GSS-API via cgo),
// negotiate_ntlm.go on Windows (a pure-Go NTLM message exchange
// standing in for SSPI, since cgo-free Go cannot call SSPI directly —
// see DESIGN.md).
type negotiateProvider interface {
	// name returns the wire scheme name this provider answers as
	// ("Negotiate" or "NTLM").
	name() string

	// initSecContext advances the handshake. in is the decoded
	// continuation token from the server (nil on the first call for
	// this context). It returns the token to stage for the next
	// request (nil if none), whether the provider reports the
	// context complete, and an error wrapping the provider's
	// major/minor status chain on failure.
	initSecContext(ns *negotiateState, target string, in []byte) (out []byte, complete bool, err error)

	// verifyMutual checks the server's final token for mutual-auth
	// success.
	verifyMutual(ns *negotiateState, in []byte) error

	// deleteContext releases provider resources tied to ns.
	deleteContext(ns *negotiateState)
}

// platformProvider is set by the build-tag-selected provider file's
// init().
var platformProvider negotiateProvider

// negotiateEngine implements the Negotiate scheme (spec.md §4.5).
type negotiateEngine struct{}

func (*negotiateEngine) id() schemeID  { return schemeNegotiate }
func (*negotiateEngine) strength() int { return 30 }
func (*negotiateEngine) flags() schemeFlag {
	return schemeOpaqueParam | schemeVerifyNon40x
}

var errNegotiateIgnored = errors.New("httpauth: Negotiate challenge ignored (empty, non-initial)")

// accept folds spec.md's separate "Accept" and "Continue" steps
// together: by the time this returns, any outbound token has already
// been staged for respond to emit. Only the initial challenge
// (attempt 0, no token) or a continuation (any attempt, with a base64
// token) is accepted; an empty challenge on a later attempt is
// ignored rather than rejected outright, matching spec.md §4.5.
func (*negotiateEngine) accept(sess *AuthSession, ch *Challenge, attempt int) error {
	if ch.Token == "" && attempt != 0 {
		return errNegotiateIgnored
	}

	if platformProvider == nil {
		return errors.New("httpauth: no Negotiate/NTLM provider available on this platform")
	}

	var in []byte
	if ch.Token != "" {
		var err error
		in, err = base64.StdEncoding.DecodeString(ch.Token)
		if err != nil {
			return fmt.Errorf("httpauth: invalid Negotiate continuation token: %v", err)
		}
	}

	if attempt == 0 {
		sess.basic = ""
		sess.digest = nil

		username, password, err := ch.handler.creds(ch.handler.userdata, sess.target, ch.Realm, attempt)
		if err != nil {
			return err
		}
		host := ch.Realm
		if host == "" && sess.target != nil {
			host = sess.target.Hostname()
		}
		sess.negotiate = &negotiateState{
			target:   host,
			username: username,
			password: password,
		}
	} else if sess.negotiate == nil {
		return errors.New("httpauth: Negotiate continuation with no prior context")
	}
	ns := sess.negotiate

	out, complete, err := platformProvider.initSecContext(ns, ns.target, in)
	if err != nil {
		return fmt.Errorf("httpauth: %s: %v", platformProvider.name(), err)
	}

	ns.complete = complete
	ns.schemeName = platformProvider.name()
	if len(out) > 0 {
		ns.token = base64.StdEncoding.EncodeToString(out)
	} else {
		ns.token = ""
	}
	if complete {
		zero([]byte(ns.password))
		ns.password = ""
	}

	return nil
}

func (*negotiateEngine) respond(sess *AuthSession, req *http.Request) (string, error) {
	ns := sess.negotiate
	if ns == nil || ns.token == "" {
		return "", nil
	}
	name := ns.schemeName
	if name == "" {
		name = "Negotiate"
	}
	return name + " " + ns.token, nil
}

// verify handles the mutual-auth window: a 2xx/3xx response carrying
// the scheme's own response header (parsed here as a single leading
// scheme token followed by an optional base64 blob terminated by
// comma or space), fed to the provider as a final continuation token.
func (*negotiateEngine) verify(sess *AuthSession, headerValue string) error {
	ns := sess.negotiate
	if ns == nil {
		return errors.New("httpauth: no Negotiate context to verify mutual authentication against")
	}
	if platformProvider == nil {
		return errors.New("httpauth: no Negotiate/NTLM provider available on this platform")
	}

	fields := strings.Fields(headerValue)
	if len(fields) == 0 {
		return errors.New("httpauth: empty mutual-authentication header")
	}

	var in []byte
	if len(fields) > 1 {
		token := strings.TrimRight(fields[1], ",")
		if token != "" {
			var err error
			in, err = base64.StdEncoding.DecodeString(token)
			if err != nil {
				return fmt.Errorf("httpauth: invalid mutual-auth token: %v", err)
			}
		}
	}

	if err := platformProvider.verifyMutual(ns, in); err != nil {
		return fmt.Errorf("httpauth: mutual authentication failed: %v", err)
	}
	return nil
}

// resetNegotiate clears the single-use outbound token after each
// send, regardless of outcome (spec.md §4.5 "Per-request reset").
func (sess *AuthSession) resetNegotiate() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.negotiate != nil {
		sess.negotiate.token = ""
	}
}
