package httpauth

import (
	"encoding/base64"
	"errors"
	"net/http"
)

// basicEngine implements HTTP Basic authentication (spec.md §4.3).
type basicEngine struct{}

func (*basicEngine) id() schemeID        { return schemeBasic }
func (*basicEngine) strength() int       { return 10 }
func (*basicEngine) flags() schemeFlag   { return 0 }

var errBasicNoRealm = errors.New("httpauth: Basic challenge missing realm")

// accept requires a non-empty realm, clears any prior session state,
// and invokes the credentials callback. Failure of the callback
// rejects the challenge; the password buffer is zeroized immediately
// after the base64 blob is composed.
func (*basicEngine) accept(sess *AuthSession, ch *Challenge, attempt int) error {
	if ch.Realm == "" {
		return errBasicNoRealm
	}

	sess.digest = nil
	sess.negotiate = nil
	sess.basic = ""

	username, password, err := ch.handler.creds(ch.handler.userdata, sess.target, ch.Realm, attempt)
	if err != nil {
		return err
	}

	pw := []byte(password)
	defer zero(pw)

	blob := make([]byte, 0, len(username)+1+len(pw))
	blob = append(blob, username...)
	blob = append(blob, ':')
	blob = append(blob, pw...)
	defer zero(blob)

	sess.username = username
	sess.basic = base64.StdEncoding.EncodeToString(blob)

	return nil
}

func (*basicEngine) respond(sess *AuthSession, req *http.Request) (string, error) {
	if sess.basic == "" {
		return "", nil
	}
	return "Basic " + sess.basic, nil
}

// verify is a no-op: Basic has no server confirmation step.
func (*basicEngine) verify(sess *AuthSession, headerValue string) error {
	return nil
}
