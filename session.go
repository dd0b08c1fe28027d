package httpauth

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
)

// Role distinguishes a server-auth session from a proxy-auth session.
// The two roles carry fixed, distinct identifiers so they can coexist
// independently on one Client without interfering (spec.md §4.6,
// §9 "per-session registries for server vs proxy").
type Role int

const (
	RoleServer Role = iota
	RoleProxy
)

func (r Role) String() string {
	if r == RoleProxy {
		return "proxy"
	}
	return "server"
}

// reqHeader is the header this role's credential is sent in.
func (r Role) reqHeader() string {
	if r == RoleProxy {
		return "Proxy-Authorization"
	}
	return "Authorization"
}

// challengeHeader is the header this role's challenges arrive in.
func (r Role) challengeHeader() string {
	if r == RoleProxy {
		return "Proxy-Authenticate"
	}
	return "WWW-Authenticate"
}

// infoHeader is the header this role's mutual-auth confirmation
// arrives in.
func (r Role) infoHeader() string {
	if r == RoleProxy {
		return "Proxy-Authentication-Info"
	}
	return "Authentication-Info"
}

// challengeCode is the status code that signals this role should
// authenticate.
func (r Role) challengeCode() int {
	if r == RoleProxy {
		return 407
	}
	return 401
}

// gate expresses which CONNECT context a role's challenges apply in.
type gate int

const (
	gateAny gate = iota
	gateConnect
	gateNotConnect
)

// permits reports whether this gate allows auth processing for a
// request that is (or is not) a CONNECT tunnel request.
//
// Per spec.md §3: on TLS-origin sessions, server-auth is NOTCONNECT
// only and proxy-auth is CONNECT only; on plain-origin sessions both
// are ANY.
func (g gate) permits(isConnect bool) bool {
	switch g {
	case gateConnect:
		return isConnect
	case gateNotConnect:
		return !isConnect
	default:
		return true
	}
}

func gateFor(role Role, isTLS bool) gate {
	if !isTLS {
		return gateAny
	}
	if role == RoleServer {
		return gateNotConnect
	}
	return gateConnect
}

// CredentialsFunc supplies a username/password for a request to
// target within realm. attempt is the 0-based count of times this
// request object has already been retried; it lets a caller give up
// after too many failures instead of looping forever on bad
// credentials. Returning a non-nil error means "give up" — the core
// will not prompt again for this challenge.
type CredentialsFunc func(userdata any, target *url.URL, realm string, attempt int) (username, password string, err error)

// Handler is one application registration: "here is my credential
// callback for these schemes." Handlers are tried in registration
// order wherever order matters (there is usually at most one per
// role in practice, but the registry supports several).
type Handler struct {
	mask     ProtoMask
	creds    CredentialsFunc
	userdata any
}

// AuthSession is one authentication context bound to one Client and
// one Role (server or proxy). At most one scheme is active at a time;
// it is cleared on (re)registration, on credential failure, and on
// Forget.
type AuthSession struct {
	mu sync.Mutex

	role Role
	gate gate

	// target is the URL of the request currently driving a
	// challenge-accept round; engines read it via sess.target when
	// invoking a Handler's CredentialsFunc.
	target *url.URL

	handlers []*Handler
	active   engine

	username string
	basic    string // cached "user:pass" base64 blob

	digest    *digestState
	negotiate *negotiateState

	cache *AuthCache
}

func newAuthSession(role Role, isTLS bool) *AuthSession {
	return &AuthSession{
		role:  role,
		gate:  gateFor(role, isTLS),
		cache: NewAuthCache(),
	}
}

// addHandler registers a credential callback for the schemes named by
// mask, preserving append order, and returns the new Handler.
func (sess *AuthSession) addHandler(mask ProtoMask, creds CredentialsFunc, userdata any) *Handler {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	h := &Handler{mask: mask, creds: creds, userdata: userdata}
	sess.handlers = append(sess.handlers, h)
	sess.active = nil
	return h
}

// forget clears all credentials and scheme state for this session.
func (sess *AuthSession) forget() {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.handlers = nil
	sess.active = nil
	sess.username = ""
	sess.basic = ""
	sess.digest = nil
	sess.negotiate = nil
	sess.cache = NewAuthCache()
}

var errNoAcceptableChallenge = errors.New("httpauth: no acceptable challenge")

// acceptChallenges walks challenges in strength order and invokes
// each candidate's accept routine (spec.md §4.2, post-parse step).
// The first acceptance becomes the active scheme; if none accept, the
// active scheme is cleared and errNoAcceptableChallenge is returned.
func (sess *AuthSession) acceptChallenges(target *url.URL, challenges Challenges, attempt int) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.target = target

	for _, c := range challenges {
		if c.handler == nil {
			continue
		}
		e := lookupEngine(c.scheme)
		if e == nil {
			continue
		}
		if err := e.accept(sess, c, attempt); err == nil {
			sess.active = e
			return nil
		}
	}

	sess.active = nil
	return errNoAcceptableChallenge
}

// respond builds the header value to send for req using the active
// scheme, or ("", nil) if there is nothing to send.
func (sess *AuthSession) respond(req *http.Request) (string, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.active == nil {
		return "", nil
	}
	return sess.active.respond(sess, req)
}

// verify checks a trailing Authentication-Info-style header (or, for
// schemeVerifyNon40x schemes, the scheme's own response header) using
// the active scheme's verifier.
func (sess *AuthSession) verify(headerValue string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.active == nil {
		return nil
	}
	return sess.active.verify(sess, headerValue)
}

// activeFlags reports the active scheme's flag bits, or 0 if no
// scheme is active.
func (sess *AuthSession) activeFlags() schemeFlag {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.active == nil {
		return 0
	}
	return sess.active.flags()
}
