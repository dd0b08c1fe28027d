package httpauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// maxAttempts bounds how many times AuthDo will retry a request across
// successive challenges before giving up (spec.md §4.6 "attempt
// monotonicity": attempt only ever increases, never resets mid-request).
const maxAttempts = 5

// Client wraps http.Client with a response-header timeout and a pair
// of authentication sessions, one for the origin server and one for a
// forward proxy, that AuthDo drives automatically on 401/407
// responses (spec.md §4.6).
type Client struct {
	http.Client
	Transport *http.Transport
	Timeout   time.Duration

	mu sync.Mutex

	// Server answers origin challenges (WWW-Authenticate / 401).
	Server *AuthSession
	// Proxy answers forward-proxy challenges (Proxy-Authenticate / 407).
	Proxy *AuthSession
}

// NewClient returns a Client for requests made directly to an origin
// server, or through a plain (non-CONNECT) proxy.
func NewClient(timeout time.Duration) *Client {
	return newClient(timeout, false)
}

// NewTunnelClient returns a Client for requests made through an
// HTTPS forward proxy: the Proxy session only answers CONNECT
// challenges, and the Server session only answers challenges from the
// tunneled request that follows (spec.md §3, the CONNECT/TLS gate).
func NewTunnelClient(timeout time.Duration) *Client {
	return newClient(timeout, true)
}

func newClient(timeout time.Duration, isTLS bool) *Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		Client:    http.Client{Transport: transport},
		Transport: transport,
		Timeout:   timeout,
		Server:    newAuthSession(RoleServer, isTLS),
		Proxy:     newAuthSession(RoleProxy, isTLS),
	}
}

// SetServerAuth replaces all server-auth handlers with a single one.
func (hr *Client) SetServerAuth(mask ProtoMask, creds CredentialsFunc, userdata any) {
	hr.Server.forget()
	hr.Server.addHandler(mask, creds, userdata)
}

// AddServerAuth registers an additional server-auth handler without
// disturbing any already registered.
func (hr *Client) AddServerAuth(mask ProtoMask, creds CredentialsFunc, userdata any) *Handler {
	return hr.Server.addHandler(mask, creds, userdata)
}

// SetProxyAuth replaces all proxy-auth handlers with a single one.
func (hr *Client) SetProxyAuth(mask ProtoMask, creds CredentialsFunc, userdata any) {
	hr.Proxy.forget()
	hr.Proxy.addHandler(mask, creds, userdata)
}

// AddProxyAuth registers an additional proxy-auth handler without
// disturbing any already registered.
func (hr *Client) AddProxyAuth(mask ProtoMask, creds CredentialsFunc, userdata any) *Handler {
	return hr.Proxy.addHandler(mask, creds, userdata)
}

// ForgetAuth clears both the server and proxy sessions: credentials,
// cached headers and in-flight scheme state.
func (hr *Client) ForgetAuth() {
	hr.Server.forget()
	hr.Proxy.forget()
}

// Sentinel errors returned by AuthDo, one per exhausted role plus a
// catch-all for a malformed or unparseable challenge.
var (
	ErrAuth      = errors.New("httpauth: server authentication failed")
	ErrProxyAuth = errors.New("httpauth: proxy authentication failed")
	ErrError     = errors.New("httpauth: authentication error")
)

// Do sends req and returns the response, cancelling the request if a
// non-zero Timeout elapses before headers are received.
func (hr *Client) Do(req *http.Request) (rsp *http.Response, err error) {
	if hr.Timeout <= 0 {
		return hr.Client.Do(req)
	}

	ctx, cancel := context.WithCancel(req.Context())
	timer := time.AfterFunc(hr.Timeout, cancel)

	rsp, err = hr.Client.Do(req.WithContext(ctx))
	expired := !timer.Stop()
	if err != nil {
		cancel()
		if expired {
			err = fmt.Errorf("error requesting %s: read timed out after %s", req.URL, hr.Timeout)
		}
	}
	return rsp, err
}

// AuthDo performs the same work as Do, additionally driving hr.Proxy
// and hr.Server through 407/401 challenge-response rounds as needed.
//
// A request body can only be read once: by the time a 401/407 comes
// back, req.Body has already been fully consumed and closed by the
// Transport that sent it, so there is nothing left in it to clone.
// Any duplication for a possible retry must therefore happen before
// the first send, not after — AuthDo duplicates req.Body up front via
// duplicateBody whenever one is present, keeping a spare clone to
// re-stage on req.Body before each retry, and re-cloning that spare in
// turn if another attempt may still follow (spec.md §4.6 "request
// body duplication").
func (hr *Client) AuthDo(req *http.Request) (rsp *http.Response, err error) {
	isConnect := req.Method == http.MethodConnect

	if auth := hr.Proxy.cache.Get(req.URL); auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}
	if auth := hr.Server.cache.Get(req.URL); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	var bodyClone io.ReadCloser
	if req.Body != nil {
		clones, derr := duplicateBody(req.Body, 2, "", 1<<20)
		if derr != nil {
			return nil, derr
		}
		req.Body, bodyClone = clones[0], clones[1]
	}
	defer func() {
		if bodyClone != nil {
			bodyClone.Close()
		}
	}()

	attempt := 0
	for {
		rsp, err = hr.Do(req)

		// A staged Negotiate/NTLM token is single-use: clear it the
		// instant it has been sent, independent of how the send went.
		hr.Server.resetNegotiate()
		hr.Proxy.resetNegotiate()

		if err != nil {
			return rsp, err
		}

		role, ok := challengeRole(hr, req, rsp, isConnect)
		if !ok {
			if err := verifyMutualAuth(hr, req, rsp, isConnect); err != nil {
				return rsp, err
			}
			return rsp, nil
		}

		sess := hr.sessionFor(role)

		hdrName := role.challengeHeader()
		if isConnect && role == RoleProxy && rsp.StatusCode == http.StatusUnauthorized {
			// Some proxies answer a CONNECT challenge with 401 and
			// WWW-Authenticate instead of 407/Proxy-Authenticate;
			// read it as a proxy challenge regardless (spec.md §3).
			hdrName = "WWW-Authenticate"
		}

		challenges, perr := parseChallenges(rsp.Header.Get(hdrName), sess.handlers)
		if perr != nil {
			return rsp, fmt.Errorf("%w: unable to parse %s: %v", ErrError, hdrName, perr)
		}
		if len(challenges) == 0 {
			return rsp, fmt.Errorf("%w: no recognized challenge in %s", ErrError, hdrName)
		}

		if attempt >= maxAttempts {
			drainAndClose(rsp)
			return rsp, roleErr(role)
		}

		if aerr := sess.acceptChallenges(req.URL, challenges, attempt); aerr != nil {
			drainAndClose(rsp)
			return rsp, roleErr(role)
		}

		if bodyClone != nil {
			if attempt+1 >= maxAttempts {
				// this is the last attempt AuthDo will make; no spare
				// clone needs to survive past it.
				req.Body, bodyClone = bodyClone, nil
			} else {
				clones, derr := duplicateBody(bodyClone, 2, "", 1<<20)
				if derr != nil {
					return rsp, derr
				}
				req.Body, bodyClone = clones[0], clones[1]
			}
		}

		drainAndClose(rsp)

		headerValue, rerr := sess.respond(req)
		if rerr != nil {
			return rsp, fmt.Errorf("%w: %v", ErrError, rerr)
		}
		if headerValue == "" {
			return rsp, roleErr(role)
		}
		req.Header.Set(role.reqHeader(), headerValue)

		attempt++
	}
}

// challengeRole reports which session (if any) should handle rsp, and
// false if rsp does not represent a challenge at all.
func challengeRole(hr *Client, req *http.Request, rsp *http.Response, isConnect bool) (Role, bool) {
	switch rsp.StatusCode {
	case http.StatusProxyAuthRequired:
		if hr.Proxy.gate.permits(isConnect) {
			return RoleProxy, true
		}
	case http.StatusUnauthorized:
		if isConnect && hr.Proxy.gate.permits(isConnect) && rsp.Header.Get("WWW-Authenticate") != "" {
			return RoleProxy, true
		}
		if hr.Server.gate.permits(isConnect) {
			return RoleServer, true
		}
	}
	return RoleServer, false
}

// verifyMutualAuth checks Authentication-Info-style headers, or, for
// schemes flagged schemeVerifyNon40x, the scheme's own response header
// on a 2xx/3xx reply. flags()&schemeVerifyNon40x is a bitwise test,
// not a truthiness check on the whole flag word: a scheme whose only
// set bit is schemeOpaqueParam must not be mistaken for one that needs
// non-40x verification.
func verifyMutualAuth(hr *Client, req *http.Request, rsp *http.Response, isConnect bool) error {
	for _, role := range [...]Role{RoleServer, RoleProxy} {
		sess := hr.sessionFor(role)
		if !sess.gate.permits(isConnect) {
			continue
		}

		flags := sess.activeFlags()
		info := rsp.Header.Get(role.infoHeader())
		if info != "" {
			if verr := sess.verify(info); verr != nil {
				return fmt.Errorf("%w: %v", roleErr(role), verr)
			}
			hr.cacheSuccess(role, req)
			continue
		}

		if flags&schemeVerifyNon40x != 0 && rsp.StatusCode >= 200 && rsp.StatusCode < 400 {
			hdr := rsp.Header.Get(role.challengeHeader())
			if hdr != "" {
				if verr := sess.verify(hdr); verr != nil {
					return fmt.Errorf("%w: %v", roleErr(role), verr)
				}
			}
		}
		hr.cacheSuccess(role, req)
	}
	return nil
}

// cacheSuccess remembers the header value that just worked so a later
// request to the same path can send it proactively.
func (hr *Client) cacheSuccess(role Role, req *http.Request) {
	v := req.Header.Get(role.reqHeader())
	if v != "" {
		hr.sessionFor(role).cache.Set(req.URL, v)
	}
}

func (hr *Client) sessionFor(role Role) *AuthSession {
	if role == RoleProxy {
		return hr.Proxy
	}
	return hr.Server
}

func roleErr(role Role) error {
	if role == RoleProxy {
		return ErrProxyAuth
	}
	return ErrAuth
}

func drainAndClose(rsp *http.Response) {
	if rsp == nil || rsp.Body == nil {
		return
	}
	io.Copy(io.Discard, rsp.Body)
	rsp.Body.Close()
}
