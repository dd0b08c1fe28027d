package httpauth

import (
	"fmt"
	"strings"

	"github.com/jimrobinson/lexrec"
)

// Item types emitted by the challenge-mode scanner.  ItemBasic,
// ItemDigest and ItemNegotiate are "scheme leaders": a bare token with
// no '=' that opens a new challenge.  The rest are recognized
// auth-params bound to whichever challenge most recently opened.
const (
	ItemIgnore lexrec.ItemType = lexrec.ItemEOF + 1 + iota
	ItemBasic
	ItemDigest
	ItemNegotiate
	ItemRealm
	ItemDomain
	ItemNonce
	ItemOpaque
	ItemStale
	ItemAlgorithm
	ItemQop
	ItemToken68
	ItemAuthParam
	ItemNextnonce
	ItemRspauth
	ItemCnonce
	ItemNc
)

func itemName(t lexrec.ItemType) string {
	switch t {
	case lexrec.ItemError:
		return "ERROR"
	case lexrec.ItemEOF:
		return "EOF"
	case lexrec.ItemEOR:
		return "EOR"
	case ItemBasic:
		return "Basic"
	case ItemDigest:
		return "Digest"
	case ItemNegotiate:
		return "Negotiate"
	case ItemIgnore:
		return "ignore"
	case ItemRealm:
		return "realm"
	case ItemDomain:
		return "domain"
	case ItemNonce:
		return "nonce"
	case ItemOpaque:
		return "opaque"
	case ItemStale:
		return "stale"
	case ItemAlgorithm:
		return "algorithm"
	case ItemQop:
		return "qop"
	case ItemToken68:
		return "token68"
	case ItemAuthParam:
		return "auth-param"
	case ItemNextnonce:
		return "nextnonce"
	case ItemRspauth:
		return "rspauth"
	case ItemCnonce:
		return "cnonce"
	case ItemNc:
		return "nc"
	default:
		return fmt.Sprintf("unknown ItemType %d", t)
	}
}

// separators per RFC 2616
var separators = `()<>@,;:\"/[]?={} ` + "\t"

// whitespace per RFC 2616
var whitespace = " \r\n\t"

// ctl are control characters per RFC 2616
var ctl = "\x00" +
	"\x01" +
	"\x02" +
	"\x03" +
	"\x04" +
	"\x05" +
	"\x06" +
	"\x07" +
	"\x08" +
	"\x09" +
	"\x0A" +
	"\x0B" +
	"\x0C" +
	"\x0D" +
	"\x0E" +
	"\x0F" +
	"\x10" +
	"\x11" +
	"\x12" +
	"\x13" +
	"\x14" +
	"\x15" +
	"\x16" +
	"\x17" +
	"\x18" +
	"\x19" +
	"\x1A" +
	"\x1B" +
	"\x1C" +
	"\x1D" +
	"\x1E" +
	"\x1F" +
	"\x7F"

// nontoken characters are separators, whitespace, and ctl
var nontoken = separators + whitespace + ctl

// emitWWWAuthenticate drives a lexer over an RFC 2617 WWW-Authenticate
// or Proxy-Authenticate header value, in "challenge mode": it emits a
// scheme leader for each recognized scheme, followed by that scheme's
// auth-params.  Negotiate, the scheme carrying schemeOpaqueParam,
// additionally accept a bare base64 continuation blob when the leader
// was followed by a single space rather than a comma.
//
//	challenge         = "Basic" realm
//	                  | "Digest" digest-challenge
//	                  | "Negotiate" [ token68 ]
//
//	digest-challenge  = 1#( realm | [ domain ] | nonce | [ opaque ]
//	                        | [ stale ] | [ algorithm ] | [ qop-options ]
//	                        | [auth-param] )
func emitWWWAuthenticate(l *lexrec.Lexer) {
	defer l.Emit(lexrec.ItemEOF)

	if l.Peek() == lexrec.EOF {
		l.Errorf("emitWWWAuthenticate: expected token character, got EOF")
		return
	}

	if l.AcceptRun(whitespace) {
		l.Skip()
	}

	if !l.ExceptRun(nontoken) {
		l.Errorf("emitWWWAuthenticate: expected token character, got %q", l.Peek())
		return
	}

	for {
		if l.Peek() == lexrec.EOF {
			return
		}

		switch strings.ToLower(string(l.Bytes())) {
		case "basic":
			l.Emit(ItemBasic)
			expectSpaceThen(l, emitBasicParams)

		case "digest":
			l.Emit(ItemDigest)
			expectSpaceThen(l, emitDigestParams)

		case "negotiate":
			l.Emit(ItemNegotiate)
			emitNegotiateParams(l)

		default:
			advanceChallenge(l)
		}
	}
}

// expectSpaceThen requires at least one whitespace character after a
// scheme leader and then hands control to fn to consume that scheme's
// params.
func expectSpaceThen(l *lexrec.Lexer, fn func(*lexrec.Lexer)) {
	if l.AcceptRun(whitespace) {
		l.Skip()
		fn(l)
		return
	}
	if l.Peek() == lexrec.EOF {
		return
	}
	if l.Peek() == ',' {
		advanceToNextScheme(l)
		return
	}
	l.Errorf("expected whitespace after scheme leader, got %q", l.Peek())
}

// emitNegotiateParams recognizes the Negotiate/NTLM continuation form:
// a bare base64 token68 separated from the scheme leader by
// whitespace, running up to the next comma or EOF.  An empty
// continuation (scheme leader immediately followed by comma or EOF) is
// the initial, token-less challenge.
//
// Whichever way this returns, if another challenge follows it must
// leave that challenge's scheme-name token already buffered by
// ExceptRun, exactly as advanceParam leaves it for emitBasicParams and
// emitDigestParams's unrecognized-token bailout to pick up: the outer
// emitWWWAuthenticate loop never re-scans, it only switches on
// l.Bytes() as left behind by whichever params function just ran.
func emitNegotiateParams(l *lexrec.Lexer) {
	switch l.Peek() {
	case lexrec.EOF:
		return
	case ',':
		advanceToNextScheme(l)
		return
	}

	if !l.AcceptRun(whitespace) {
		l.Errorf("emitNegotiateParams: expected whitespace or ',' after 'Negotiate', got %q", l.Peek())
		return
	}
	l.Skip()

	switch l.Peek() {
	case lexrec.EOF:
		return
	case ',':
		advanceToNextScheme(l)
		return
	}

	if l.ExceptRun(",") {
		l.Emit(ItemToken68)
	}

	if l.Peek() == ',' {
		advanceToNextScheme(l)
	}
}

// advanceToNextScheme consumes a separating comma and any whitespace,
// then buffers the following scheme-name token via ExceptRun, for the
// outer loop's switch on l.Bytes() to consume.
func advanceToNextScheme(l *lexrec.Lexer) {
	l.Accept(",")
	l.AcceptRun(whitespace)
	l.Skip()
	l.ExceptRun(nontoken)
}

// emitAuthenticationInfo drives the same lexer over an
// Authentication-Info or Proxy-Authentication-Info header value in
// "pair mode": a comma-separated key=value / key="quoted value" list
// with no scheme leader. It is the ischall=false twin of
// emitWWWAuthenticate's ischall=true challenge mode: both walk the
// same token/quoted-string grammar over the same nontoken/whitespace
// alphabets and the same lexrec.Quote helper, differing only in
// whether a bare leading token opens a new challenge or is just
// another parameter name.
//
//	auth-info  = 1#( nextnonce | [ message-qop ] | [ response-auth ]
//	                | [ cnonce ] | [ nonce-count ] )
func emitAuthenticationInfo(l *lexrec.Lexer) {
	defer l.Emit(lexrec.ItemEOF)

	if l.AcceptRun(whitespace) {
		l.Skip()
	}
	if l.Peek() == lexrec.EOF {
		return
	}

	expectParam := true
	for expectParam {
		if !l.ExceptRun(nontoken) {
			l.Errorf("emitAuthenticationInfo: expected a token character, got %q", l.Peek())
			return
		}

		switch strings.ToLower(string(l.Bytes())) {
		case "qop":
			emitQuotedOrToken(l, ItemQop)
		case "nextnonce":
			emitQuotedOrToken(l, ItemNextnonce)
		case "rspauth":
			emitQuotedOrToken(l, ItemRspauth)
		case "cnonce":
			emitQuotedOrToken(l, ItemCnonce)
		case "nc":
			emitQuotedOrToken(l, ItemNc)
		default:
			r := l.Peek()
			if r == ',' || isSpace(r) || r == lexrec.EOF {
				return
			}
			ignoreToken(l)
		}

		expectParam = advanceParam(l)
	}
}

// emitQuotedOrToken transmits the value from <name>=<value>, where
// <value> may be a quoted-string or a bare token: unlike Digest's
// challenge directives, Authentication-Info mixes both forms across
// its own directives (nextnonce/rspauth/cnonce are quoted, qop/nc are
// not), so the caller can't fix the form up front the way
// emitQuotedToken/emitToken do.
func emitQuotedOrToken(l *lexrec.Lexer, t lexrec.ItemType) {
	if !l.Accept("=") {
		l.Errorf("emitQuotedOrToken: expected '=' after '%s', got %q", itemName(t), l.Peek())
		return
	}
	l.Skip()

	if l.Peek() == '"' {
		if !lexrec.Quote(l, t, true) {
			l.Errorf("emitQuotedOrToken: malformed quoted-string after '%s=', got %q", itemName(t), l.Peek())
		}
		return
	}

	if !l.ExceptRun(nontoken) {
		l.Errorf("emitQuotedOrToken: expected a token character, got %q", l.Peek())
		return
	}
	l.Emit(t)
}

// advanceChallenge skips over an unrecognized WWW-Authenticate challenge.
func advanceChallenge(l *lexrec.Lexer) {
	if l.AcceptRun(whitespace) {
		l.Skip()
	}

	expectParam := true
	for expectParam {
		if l.ExceptRun(nontoken) {
			r := l.Peek()
			if r == '=' {
				l.Accept("=")
				l.Skip()
				if l.Peek() == '"' {
					if lexrec.Quote(l, ItemAuthParam, false) {
						l.Skip()
					}
				} else {
					if l.ExceptRun(nontoken) {
						l.Skip()
					} else {
						l.Errorf("advanceChallenge: expected a token character, got %q", l.Peek())
					}
				}
			} else if isSpace(r) {
				return
			} else {
				l.Errorf("advanceChallenge: expected either whitespace or '=', got %q", l.Peek())
				return
			}

			expectParam = advanceParam(l)
		} else {
			return
		}
	}
}

// emitBasicParams expects to be positioned at the start of the
// 'realm' Basic authentication parameter.
func emitBasicParams(l *lexrec.Lexer) {

	expectParam := true

	for expectParam {
		if !l.ExceptRun(nontoken) {
			l.Errorf("emitBasicParams: expected a token character, got %q", l.Peek())
			return
		}

		switch string(l.Bytes()) {
		case "realm":
			emitQuotedToken(l, ItemRealm)
		default:
			r := l.Peek()
			if r == ',' || isSpace(r) || r == lexrec.EOF {
				return
			}
			ignoreToken(l)
		}

		expectParam = advanceParam(l)
	}
}

// emitDigestParams expects to be positioned at the start of a Digest
// authentication parameter, <name>=<value>, where <name> is a valid
// token and where <value> is either a token or a quoted-string.
func emitDigestParams(l *lexrec.Lexer) {

	expectParam := true

	for expectParam {
		if !l.ExceptRun(nontoken) {
			l.Errorf("emitDigestParams: expected a token character, got %q", l.Peek())
			return
		}

		switch strings.ToLower(string(l.Bytes())) {
		case "realm":
			emitQuotedToken(l, ItemRealm)
		case "domain":
			emitQuotedToken(l, ItemDomain)
		case "nonce":
			emitQuotedToken(l, ItemNonce)
		case "opaque":
			emitQuotedToken(l, ItemOpaque)
		case "stale":
			emitBoolToken(l, ItemStale)
		case "algorithm":
			emitToken(l, ItemAlgorithm)
		case "qop":
			emitQuotedToken(l, ItemQop)
		default:
			r := l.Peek()
			if r == ',' || isSpace(r) || r == lexrec.EOF {
				return
			}
			ignoreToken(l)
		}

		expectParam = advanceParam(l)
	}
}

// emitQuotedToken transmits the quoted-string value from <name>=<value>
func emitQuotedToken(l *lexrec.Lexer, t lexrec.ItemType) {
	if !l.Accept("=") {
		l.Errorf("emitQuotedToken: expected '=' after '%s', got %q'", itemName(t), l.Peek())
		return
	}

	l.Skip()

	if !lexrec.Quote(l, t, true) {
		l.Errorf("emitQuotedToken: expected a quoted string after '%s=', got %q", itemName(t), l.Peek())
	}
}

// emitToken emits the token value from <name>=<value>
func emitToken(l *lexrec.Lexer, t lexrec.ItemType) {
	if !l.Accept("=") {
		l.Errorf("emitToken expected '=' after '%s', got %q'", itemName(t), l.Peek())
		return
	}

	l.Skip()

	if !l.ExceptRun(nontoken) {
		l.Errorf("emitToken expected a token character, got %q", l.Peek())
		return
	}

	l.Emit(t)
}

// emitBoolToken emits the token value from <name>=<value>, where the
// value is either "true" or "false" (case insensitive)
func emitBoolToken(l *lexrec.Lexer, t lexrec.ItemType) {
	if !l.Accept("=") {
		l.Errorf("emitBoolToken: expected '=' after '%s', got %q'", itemName(t), l.Peek())
		return
	}

	l.Skip()

	if !l.ExceptRun(nontoken) {
		l.Errorf("emitBoolToken: expected a token character, got %q", l.Peek())
		return
	}

	s := strings.ToLower(string(l.Bytes()))
	if s == "true" || s == "false" {
		l.Emit(t)
		return
	} else {
		l.Errorf("emitBoolToken: expected token to be 'true' or 'false', got %q", s)
	}
}

// ignoreToken skips past <name>=<value>, where the value may be a
// token or a quoted-string.
func ignoreToken(l *lexrec.Lexer) {

	p := string(l.Bytes())
	l.Skip()

	if !l.Accept("=") {
		l.Errorf("ignoreToken: after '%s' expected '=', got %q'", p, l.Peek())
		return
	} else {
		l.Skip()
	}

	if l.Peek() == '"' {
		if lexrec.Quote(l, ItemAuthParam, false) {
			l.Skip()
		}
	} else {
		if l.ExceptRun(nontoken) {
			l.Skip()
		} else {
			l.Errorf("ignoreToken: expected a token character, got %q", l.Peek())
		}
	}
}

// advanceParam attempts to advance to the start of the next
// parameter and returns true if the advance succeeded, otherwise
// false if the lexer is at EOF or if unexpected characters were
// found.
func advanceParam(l *lexrec.Lexer) bool {
	if l.Peek() == lexrec.EOF {
		return false
	}

	l.AcceptRun(whitespace)

	if l.Next() != ',' {
		l.Errorf("advanceParam: expected comma, got %q", l.Peek())
		return false
	}

	l.AcceptRun(whitespace)

	l.Skip()

	return true
}

// isSpace tests if r is within the string whitespace
func isSpace(r rune) bool {
	return strings.ContainsRune(whitespace, r)
}

// shave strips a single layer of '"' or '\'' quoting from s, if
// present on both ends.
func shave(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
