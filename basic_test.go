package httpauth

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicRoundTrip(t *testing.T) {
	handler := &Handler{mask: ProtoBasic, creds: func(any, *url.URL, string, int) (string, string, error) {
		return "alice", "secret", nil
	}}
	sess := &AuthSession{role: RoleServer}
	ch := &Challenge{scheme: schemeBasic, handler: handler, Realm: "example.com"}

	var engine basicEngine
	require.NoError(t, engine.accept(sess, ch, 0))

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	hdr, err := engine.respond(sess, req)
	require.NoError(t, err)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	assert.Equal(t, want, hdr)

	assert.NoError(t, engine.verify(sess, ""), "Basic has no mutual-auth step")
}

func TestBasicRejectsMissingRealm(t *testing.T) {
	handler := &Handler{mask: ProtoBasic, creds: func(any, *url.URL, string, int) (string, string, error) {
		return "alice", "secret", nil
	}}
	sess := &AuthSession{role: RoleServer}
	ch := &Challenge{scheme: schemeBasic, handler: handler}

	var engine basicEngine
	assert.Error(t, engine.accept(sess, ch, 0))
}

func TestBasicClearsCompetingSchemeState(t *testing.T) {
	handler := &Handler{mask: ProtoAll, creds: func(any, *url.URL, string, int) (string, string, error) {
		return "alice", "secret", nil
	}}
	sess := &AuthSession{role: RoleServer, digest: &digestState{ha1: "stale"}}
	ch := &Challenge{scheme: schemeBasic, handler: handler, Realm: "example.com"}

	var engine basicEngine
	require.NoError(t, engine.accept(sess, ch, 0))
	assert.Nil(t, sess.digest)
}
