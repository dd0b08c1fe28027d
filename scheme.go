package httpauth

import "net/http"

// schemeID names one of the small closed set of authentication
// schemes this core understands.
type schemeID int

const (
	schemeBasic schemeID = iota
	schemeDigest
	schemeNegotiate
)

func (id schemeID) String() string {
	switch id {
	case schemeBasic:
		return "Basic"
	case schemeDigest:
		return "Digest"
	case schemeNegotiate:
		return "Negotiate"
	default:
		return "unknown"
	}
}

// ProtoMask is a bitset of schemes an application Handler is willing
// to answer challenges for.
type ProtoMask uint

const (
	ProtoBasic ProtoMask = 1 << iota
	ProtoDigest
	ProtoNegotiate

	ProtoAll = ProtoBasic | ProtoDigest | ProtoNegotiate
)

func (id schemeID) mask() ProtoMask {
	switch id {
	case schemeBasic:
		return ProtoBasic
	case schemeDigest:
		return ProtoDigest
	case schemeNegotiate:
		return ProtoNegotiate
	default:
		return 0
	}
}

// schemeFlag carries per-scheme behavioral bits.
type schemeFlag uint

const (
	// schemeOpaqueParam marks a scheme whose challenge leader may be
	// followed, after a single space rather than a comma, by a bare
	// opaque continuation blob instead of RFC 2617 auth-params
	// (Negotiate's base64 token68).
	schemeOpaqueParam schemeFlag = 1 << iota

	// schemeVerifyNon40x marks a scheme whose mutual-auth verification
	// header may arrive on a 2xx/3xx response rather than only
	// alongside Authentication-Info on a 2xx following a 401/407
	// (Negotiate's mutual authentication on success).
	schemeVerifyNon40x
)

// engine is the per-scheme {accept-challenge, build-credential,
// verify-info} triplet described in spec.md §4. Basic, Digest and
// Negotiate are implemented as distinct types satisfying this
// interface rather than via runtime inheritance — a small closed set
// of tagged variants, per spec.md §9.
type engine interface {
	id() schemeID
	strength() int
	flags() schemeFlag

	// accept evaluates a parsed Challenge against the session's
	// current credentials, returning nil if the challenge is
	// accepted (becoming the session's active scheme) or an error
	// otherwise. attempt is the 0-based retry count for the current
	// request.
	accept(sess *AuthSession, ch *Challenge, attempt int) error

	// respond builds the header value to send in Authorization /
	// Proxy-Authorization for req, given the session's active state
	// for this scheme. An empty string with a nil error means
	// "nothing to send yet" (e.g. Negotiate with no staged token).
	respond(sess *AuthSession, req *http.Request) (string, error)

	// verify checks a trailing Authentication-Info-style header (or,
	// for schemeVerifyNon40x schemes, a response-carried scheme
	// header on 2xx/3xx) against the session's active state.
	verify(sess *AuthSession, headerValue string) error
}

// engines lists the known schemes in strictly descending strength
// order, as spec.md §3 requires: Negotiate(30) > Digest(20) >
// Basic(10). Challenge candidates are insertion-sorted into this same
// order, and the request hook driver always tries the strongest
// accepted scheme.
var engines = []engine{
	&negotiateEngine{},
	&digestEngine{},
	&basicEngine{},
}

// lookupEngine returns the engine registered for id, or nil.
func lookupEngine(id schemeID) engine {
	for _, e := range engines {
		if e.id() == id {
			return e
		}
	}
	return nil
}
