package httpauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroOverwritesAllBytes(t *testing.T) {
	b := []byte("super-secret-password")
	zero(b)
	for i, c := range b {
		assert.Equalf(t, byte(0), c, "byte %d not zeroed", i)
	}
}

func TestZeroHandlesEmptyAndNil(t *testing.T) {
	assert.NotPanics(t, func() { zero(nil) })
	assert.NotPanics(t, func() { zero([]byte{}) })
}

// withZeroSpy replaces the package-level zero hook with one that still
// zeroizes but also records every slice it was handed, restoring the
// original on test cleanup. Since slices alias their backing array,
// the recorded slices reflect the final (zeroed) contents once the
// credential path under test returns.
func withZeroSpy(t *testing.T) *[][]byte {
	t.Helper()
	var captured [][]byte
	real := zero
	zero = func(b []byte) {
		real(b)
		captured = append(captured, b)
	}
	t.Cleanup(func() { zero = real })
	return &captured
}

func assertAllZeroed(t *testing.T, captured [][]byte) {
	t.Helper()
	require.NotEmpty(t, captured, "credential path did not zeroize any buffer")
	for n, b := range captured {
		require.NotEmpty(t, b, "zeroized buffer %d was empty", n)
		for i, c := range b {
			assert.Equalf(t, byte(0), c, "buffer %d byte %d not zeroed", n, i)
		}
	}
}

// TestBasicAcceptZeroizesPasswordAndBlob checks that basicEngine.accept
// wipes both the raw password buffer and the composed "user:pass" blob
// it builds from it (basic.go's two zero() call sites).
func TestBasicAcceptZeroizesPasswordAndBlob(t *testing.T) {
	captured := withZeroSpy(t)

	handler := &Handler{mask: ProtoBasic, creds: func(any, *url.URL, string, int) (string, string, error) {
		return "alice", "secret", nil
	}}
	sess := &AuthSession{role: RoleServer}
	ch := &Challenge{scheme: schemeBasic, handler: handler, Realm: "example.com"}

	var engine basicEngine
	require.NoError(t, engine.accept(sess, ch, 0))

	require.Len(t, *captured, 2, "accept must zeroize both the password buffer and the composed blob")
	assertAllZeroed(t, *captured)
}

// TestDigestAcceptZeroizesPassword checks that digestEngine.accept
// wipes the raw password buffer used to compute H(A1) (digest.go's
// zero() call site in the non-stale path).
func TestDigestAcceptZeroizesPassword(t *testing.T) {
	captured := withZeroSpy(t)

	handler := &Handler{mask: ProtoDigest, creds: func(any, *url.URL, string, int) (string, string, error) {
		return "alice", "secret", nil
	}}
	sess := &AuthSession{role: RoleServer}
	ch := &Challenge{scheme: schemeDigest, handler: handler, Realm: "example.com", Nonce: "n0nce"}

	var engine digestEngine
	require.NoError(t, engine.accept(sess, ch, 0))

	assertAllZeroed(t, *captured)
}

// TestDigestStaleAcceptDoesNotRezeroize checks that a stale challenge,
// which reuses the existing H(A1) instead of re-deriving it from a
// fresh password, has no password buffer to zeroize at all.
func TestDigestStaleAcceptDoesNotRezeroize(t *testing.T) {
	handler := &Handler{mask: ProtoDigest, creds: func(any, *url.URL, string, int) (string, string, error) {
		return "alice", "secret", nil
	}}
	sess := &AuthSession{role: RoleServer}
	ch1 := &Challenge{scheme: schemeDigest, handler: handler, Realm: "example.com", Nonce: "n1"}

	var engine digestEngine
	require.NoError(t, engine.accept(sess, ch1, 0))

	captured := withZeroSpy(t)
	ch2 := &Challenge{scheme: schemeDigest, handler: handler, Realm: "example.com", Nonce: "n2", Stale: true}
	require.NoError(t, engine.accept(sess, ch2, 1))
	assert.Empty(t, *captured, "a stale challenge reuses H(A1) and never touches the password again")
}
