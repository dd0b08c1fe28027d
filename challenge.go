package httpauth

import (
	"fmt"
	"strings"

	"github.com/jimrobinson/lexrec"
	"github.com/jimrobinson/trace"
)

// digestAlgorithm names a Digest "algorithm" directive value.
type digestAlgorithm int

const (
	algorithmUnset digestAlgorithm = iota
	algorithmMD5
	algorithmMD5Sess
	algorithmUnknown
)

func parseDigestAlgorithm(s string) digestAlgorithm {
	switch strings.ToLower(s) {
	case "":
		return algorithmUnset
	case "md5":
		return algorithmMD5
	case "md5-sess":
		return algorithmMD5Sess
	default:
		return algorithmUnknown
	}
}

func (a digestAlgorithm) String() string {
	switch a {
	case algorithmMD5Sess:
		return "MD5-sess"
	default:
		return "MD5"
	}
}

// Challenge is one parsed challenge from a WWW-Authenticate or
// Proxy-Authenticate header value, tied to one supported scheme.
type Challenge struct {
	scheme  schemeID
	handler *Handler

	Realm     string
	Nonce     string
	Opaque    string
	Stale     bool
	Algorithm digestAlgorithm
	GotQop    bool
	QopAuth   bool

	// Token is the Negotiate/NTLM base64 continuation blob, when the
	// scheme leader was followed by a single space rather than a
	// comma-separated auth-param list.
	Token string
}

// Challenges is an ordered, strength-descending list of Challenge.
type Challenges []*Challenge

// strength returns the candidate ordering value for c's scheme.
func (c *Challenge) strength() int {
	if e := lookupEngine(c.scheme); e != nil {
		return e.strength()
	}
	return -1
}

// insert inserts c into challenges, keeping strict descending order
// by scheme strength (spec.md §3 invariant, §4.2 step 2).
func (challenges Challenges) insert(c *Challenge) Challenges {
	i := 0
	for i < len(challenges) && challenges[i].strength() >= c.strength() {
		i++
	}
	out := make(Challenges, 0, len(challenges)+1)
	out = append(out, challenges[:i]...)
	out = append(out, c)
	out = append(out, challenges[i:]...)
	return out
}

// parseChallenges parses the WWW-Authenticate or Proxy-Authenticate
// header value hdr, matching each scheme leader case-insensitively
// against the engines registered in scheme.go and filtered by the
// union of the supplied handlers' ProtoMask. Recognized challenges
// are inserted in descending strength order; unrecognized schemes are
// skipped (spec.md §4.2 step 1).
func parseChallenges(hdr string, handlers []*Handler) (challenges Challenges, err error) {
	traceFn, traceT := trace.M(traceId, trace.Trace)

	allowed := ProtoMask(0)
	for _, h := range handlers {
		allowed |= h.mask
	}

	r := strings.NewReader(hdr)
	rec := lexrec.NewRecord(256, nil, func(l *lexrec.Lexer) {})

	var l *lexrec.Lexer
	l, err = lexrec.NewLexerRun("ParseChallenge", r, rec, emitWWWAuthenticate)
	if err != nil {
		return nil, err
	}

	var cur *Challenge

	bind := func(id schemeID) *Challenge {
		if allowed&id.mask() == 0 {
			cur = nil
			return nil
		}
		h := handlerFor(handlers, id)
		c := &Challenge{scheme: id, handler: h}
		challenges = challenges.insert(c)
		cur = c
		return c
	}

	for {
		item := l.NextItem()
		if item.Type == lexrec.ItemEOF {
			break
		} else if item.Type == lexrec.ItemError {
			err = fmt.Errorf("error at position %d: %s", item.Pos, item.Value)
			break
		}

		switch item.Type {
		case ItemBasic:
			bind(schemeBasic)
		case ItemDigest:
			bind(schemeDigest)
		case ItemNegotiate:
			bind(schemeNegotiate)
		case ItemRealm:
			if cur != nil {
				cur.Realm = shave(item.Value)
			}
		case ItemDomain:
			// domain directive is recognized but not routed to a
			// cache space beyond what AuthCache already does by URI;
			// spec.md Non-goals excludes full domain-directive
			// handling.
		case ItemNonce:
			if cur != nil {
				cur.Nonce = shave(item.Value)
			}
		case ItemOpaque:
			if cur != nil {
				cur.Opaque = shave(item.Value)
			}
		case ItemStale:
			if cur != nil {
				cur.Stale = strings.EqualFold(item.Value, "true")
			}
		case ItemAlgorithm:
			if cur != nil {
				cur.Algorithm = parseDigestAlgorithm(item.Value)
			}
		case ItemQop:
			if cur != nil {
				options := strings.Split(shave(item.Value), ",")
				cur.GotQop = true
				for _, o := range options {
					if strings.TrimSpace(o) == "auth" {
						cur.QopAuth = true
					}
				}
			}
		case ItemToken68:
			if cur != nil {
				cur.Token = item.Value
			}
		case ItemAuthParam:
			if traceT {
				trace.T(traceFn, "skipping unrecognized auth-param: %s", item.Value)
			}
		default:
			err = fmt.Errorf("unhandled item type %d at position %d: %v", item.Type, item.Pos, item.Value)
			return
		}
	}

	return
}

func handlerFor(handlers []*Handler, id schemeID) *Handler {
	for _, h := range handlers {
		if h.mask&id.mask() != 0 {
			return h
		}
	}
	return nil
}
