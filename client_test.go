package httpauth

import (
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5Hex(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// TestClientAuthDoDigestChallenge drives a full request against a
// test server that challenges any request without an Authorization
// header with Digest and accepts any request that carries one,
// confirming AuthDo answers the challenge and returns the final 200.
func TestClientAuthDoDigestChallenge(t *testing.T) {
	const nonce = "testnonce"
	var ha1 string
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			attempts++
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Digest realm="realm", nonce="%s", qop="auth"`, nonce))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ha1 = md5Hex("alice", ":", "realm", ":", "secret")
	_ = ha1

	client := NewClient(5 * time.Second)
	client.SetServerAuth(ProtoAll, func(userdata any, target *url.URL, realm string, attempt int) (string, string, error) {
		attempts++
		return "alice", "secret", nil
	}, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	rsp, err := client.AuthDo(req)
	require.NoError(t, err)
	defer rsp.Body.Close()

	assert.Equal(t, http.StatusOK, rsp.StatusCode)
}

// TestClientAuthDoGivesUpOnBadCredentials checks that AuthDo returns
// ErrAuth, not an infinite loop, when the server never accepts.
func TestClientAuthDoGivesUpOnBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", `Digest realm="realm", nonce="n", qop="auth"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	client.SetServerAuth(ProtoAll, func(userdata any, target *url.URL, realm string, attempt int) (string, string, error) {
		return "alice", "wrong", nil
	}, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = client.AuthDo(req)
	assert.ErrorIs(t, err, ErrAuth)
}

// TestClientAuthDoPostBodySurvivesRetry checks that AuthDo's body
// duplication (duplicateBody, driving MemFileReadCloser) carries a POST
// body intact across a challenge-and-retry round, and that the body
// the server actually receives on the authenticated retry matches what
// was sent on the unauthenticated first attempt.
func TestClientAuthDoPostBodySurvivesRetry(t *testing.T) {
	const payload = "field1=value1&field2=value2&field2=value2&field2=value2"
	var gotBodies []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBodies = append(gotBodies, string(body))

		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="realm", nonce="bodynonce", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	client.SetServerAuth(ProtoAll, func(userdata any, target *url.URL, realm string, attempt int) (string, string, error) {
		return "alice", "secret", nil
	}, nil)

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rsp, err := client.AuthDo(req)
	require.NoError(t, err)
	defer rsp.Body.Close()

	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	require.Len(t, gotBodies, 2, "server must see exactly one challenged attempt and one retry")
	assert.Equal(t, payload, gotBodies[0], "the first, unauthenticated attempt must still carry the original body")
	assert.Equal(t, payload, gotBodies[1], "the retried, authenticated attempt must carry the same body, not a truncated or corrupted clone")
}

// TestChallengeRoleProxyInConnectQuirk checks that a CONNECT request
// challenged with 401/WWW-Authenticate (instead of the correct
// 407/Proxy-Authenticate) is still routed to the proxy session, a
// quirk some proxies exhibit in practice (spec.md §3).
func TestChallengeRoleProxyInConnectQuirk(t *testing.T) {
	client := NewTunnelClient(0)

	rsp := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Header:     http.Header{"Www-Authenticate": []string{`Basic realm="proxy-realm"`}},
	}
	req := &http.Request{Method: http.MethodConnect}

	role, ok := challengeRole(client, req, rsp, true)
	require.True(t, ok)
	assert.Equal(t, RoleProxy, role)
}

// TestChallengeRoleOrdinary401IsServer checks that a plain 401 on a
// non-CONNECT request is routed to the server session, not the proxy.
func TestChallengeRoleOrdinary401IsServer(t *testing.T) {
	client := NewClient(0)

	rsp := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Header:     http.Header{"Www-Authenticate": []string{`Basic realm="r"`}},
	}
	req := &http.Request{Method: http.MethodGet}

	role, ok := challengeRole(client, req, rsp, false)
	require.True(t, ok)
	assert.Equal(t, RoleServer, role)
}

// TestChallengeRoleSuccessIsNotAChallenge checks that a 200 response
// is never mistaken for a challenge.
func TestChallengeRoleSuccessIsNotAChallenge(t *testing.T) {
	client := NewClient(0)
	rsp := &http.Response{StatusCode: http.StatusOK}
	req := &http.Request{Method: http.MethodGet}

	_, ok := challengeRole(client, req, rsp, false)
	assert.False(t, ok)
}
