package httpauth

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// qopMode is the negotiated Digest quality-of-protection mode. This
// core supports "auth" only; auth-int is a spec.md Non-goal.
type qopMode int

const (
	qopNone qopMode = iota
	qopAuth
)

// digestState is the subset of AuthSession the Digest engine owns
// (spec.md §3's DigestState entity).
type digestState struct {
	realm  string
	nonce  string
	cnonce string
	opaque string

	qop       qopMode
	algorithm digestAlgorithm

	nonceCount uint32
	ha1        string

	// uri is the digest-uri-value of the most recent outgoing
	// request, remembered so Authentication-Info verification can
	// recompute H(A2').
	uri string

	// partial holds the buffered request-digest prefix
	// (H(A1) ":" nonce ":" nc ":" cnonce ":") from the most recent
	// qop=auth response, standing in for the "duplicate an
	// in-progress hash context" snapshot spec.md §4.4/§9 describes:
	// crypto/md5 exposes no cloneable state, so the prefix is kept
	// as a string and re-hashed with two different suffixes. It
	// exists iff the last response used qop and Authentication-Info
	// has not yet been verified for it; verify consumes (clears) it
	// once it recomputes rspauth, whether or not the result matches.
	partial string
}

// digestEngine implements HTTP Digest authentication (spec.md §4.4).
type digestEngine struct{}

func (*digestEngine) id() schemeID      { return schemeDigest }
func (*digestEngine) strength() int     { return 20 }
func (*digestEngine) flags() schemeFlag { return 0 }

// accept validates and adopts a Digest challenge.
//
// A stale=true challenge reuses the existing H(A1) with the new
// nonce, resets nonce_count to zero, and regenerates cnonce — matching
// spec.md exactly, even though some servers may expect monotone nc
// across a "stale" boundary (spec.md §9 compatibility note; behavior
// is intentionally left as specified, not "fixed").
func (*digestEngine) accept(sess *AuthSession, ch *Challenge, attempt int) error {
	algo := ch.Algorithm
	if algo == algorithmUnset {
		algo = algorithmMD5
	}
	if algo == algorithmUnknown {
		return fmt.Errorf("httpauth: unhandled Digest algorithm")
	}
	if algo == algorithmMD5Sess && !ch.QopAuth {
		return fmt.Errorf("httpauth: MD5-sess requires qop=auth")
	}
	if ch.Realm == "" {
		return fmt.Errorf("httpauth: Digest challenge missing realm")
	}
	if ch.Nonce == "" {
		return fmt.Errorf("httpauth: Digest challenge missing nonce")
	}

	nonStale := !ch.Stale || sess.digest == nil

	var username, password string
	if nonStale {
		sess.basic = ""
		sess.negotiate = nil

		var err error
		username, password, err = ch.handler.creds(ch.handler.userdata, sess.target, ch.Realm, attempt)
		if err != nil {
			return err
		}
	} else {
		username = sess.username
	}

	qop := qopNone
	if ch.GotQop {
		qop = qopAuth
	}

	cnonce, err := generateCNonce()
	if err != nil {
		return err
	}

	st := &digestState{
		realm:     ch.Realm,
		nonce:     ch.Nonce,
		cnonce:    cnonce,
		opaque:    ch.Opaque,
		qop:       qop,
		algorithm: algo,
	}

	if nonStale {
		pw := []byte(password)
		defer zero(pw)

		ha1 := md5hex(username, ":", ch.Realm, ":", password)
		if algo == algorithmMD5Sess {
			ha1 = md5hex(ha1, ":", ch.Nonce, ":", cnonce)
		}
		st.ha1 = ha1
	} else {
		st.ha1 = sess.digest.ha1
	}

	sess.username = username
	sess.digest = st

	return nil
}

var errNoDigestState = errors.New("httpauth: no active Digest state")

// respond builds the Authorization/Proxy-Authorization header value
// for req, computing H(A2) and the request-digest per RFC 2617
// §3.2.2.1-3.
func (*digestEngine) respond(sess *AuthSession, req *http.Request) (string, error) {
	st := sess.digest
	if st == nil {
		return "", errNoDigestState
	}

	uri := req.URL.RequestURI()
	ha2 := md5hex(req.Method, ":", uri)

	var nc string
	var response string

	if st.qop == qopAuth {
		st.nonceCount++
		nc = fmt.Sprintf("%08x", st.nonceCount)

		prefix := st.ha1 + ":" + st.nonce + ":" + nc + ":" + st.cnonce + ":"
		st.partial = prefix // snapshot for later Authentication-Info verification
		response = md5hex(prefix, "auth", ":", ha2)
	} else {
		st.partial = ""
		response = md5hex(st.ha1, ":", st.nonce, ":", ha2)
	}
	st.uri = uri

	buf := &bytes.Buffer{}
	buf.WriteString(fmt.Sprintf(`Digest username="%s"`, sess.username))
	buf.WriteString(fmt.Sprintf(`, realm="%s"`, st.realm))
	buf.WriteString(fmt.Sprintf(`, nonce="%s"`, st.nonce))
	buf.WriteString(fmt.Sprintf(`, uri="%s"`, uri))
	buf.WriteString(fmt.Sprintf(`, response="%s"`, response))
	buf.WriteString(fmt.Sprintf(`, algorithm="%s"`, st.algorithm))
	if st.opaque != "" {
		buf.WriteString(fmt.Sprintf(`, opaque="%s"`, st.opaque))
	}
	if st.qop == qopAuth {
		buf.WriteString(fmt.Sprintf(`, cnonce="%s", nc=%s, qop="auth"`, st.cnonce, nc))
	}

	return buf.String(), nil
}

// verify checks Authentication-Info / Proxy-Authentication-Info.
//
// An absent qop parameter is the 2069-style variant: rspauth is not
// verified (tolerated), but nextnonce is still honored. Otherwise the
// modern variant requires rspauth, cnonce and nc to all be present,
// requires cnonce and nc to match the session's, and recomputes
// rspauth from the buffered partial request-digest prefix with a
// modified H(A2') that omits the method.
func (*digestEngine) verify(sess *AuthSession, headerValue string) error {
	st := sess.digest
	if st == nil {
		return nil
	}

	pairs := scanPairs(headerValue)
	qop, hasQop := pairs["qop"]

	if !hasQop || qop == "" {
		if nextnonce, ok := pairs["nextnonce"]; ok && nextnonce != "" {
			st.nonce = nextnonce
			st.nonceCount = 0
		}
		return nil
	}

	rspauth := pairs["rspauth"]
	cnonce := pairs["cnonce"]
	ncStr := pairs["nc"]

	if rspauth == "" || cnonce == "" || ncStr == "" {
		return errors.New("httpauth: Authentication-Info missing parameters")
	}
	if cnonce != st.cnonce {
		return errors.New("httpauth: Authentication-Info client nonce mismatch")
	}

	ncVal, err := strconv.ParseUint(ncStr, 16, 32)
	if err != nil || uint32(ncVal) != st.nonceCount {
		return errors.New("httpauth: Authentication-Info nonce count mismatch")
	}

	if st.partial == "" {
		return errors.New("httpauth: no partial request-digest to verify Authentication-Info against")
	}

	ha2prime := md5hex(":", st.uri)
	computed := md5hex(st.partial, "auth", ":", ha2prime)
	st.partial = "" // one-shot: consumed regardless of outcome

	if !strings.EqualFold(computed, rspauth) {
		return errors.New("httpauth: Authentication-Info request-digest mismatch")
	}

	if nextnonce, ok := pairs["nextnonce"]; ok && nextnonce != "" {
		st.nonce = nextnonce
		st.nonceCount = 0
	}

	return nil
}

// md5hex concatenates parts and returns the lowercase hex MD5 digest.
func md5hex(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		io.WriteString(h, p)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// generateCNonce derives 32 hex characters via MD5 over 256 bytes of
// randomness, preferring a cryptographically strong RNG. If that RNG
// is unavailable the wall clock and process id are mixed in instead;
// either way the result is a client-chosen nonce, not a secret, so the
// hash is best-effort rather than a security primitive (spec.md §4.4).
func generateCNonce() (string, error) {
	buf := make([]byte, 256)
	if _, err := rand.Read(buf); err != nil {
		mix := fmt.Sprintf("%d:%d", time.Now().UnixNano(), os.Getpid())
		buf = []byte(mix)
	}
	h := md5.New()
	h.Write(buf)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
