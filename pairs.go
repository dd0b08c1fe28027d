package httpauth

import (
	"strings"

	"github.com/jimrobinson/lexrec"
)

// scanPairs parses an Authentication-Info or Proxy-Authentication-Info
// header value in pair mode (emitAuthenticationInfo in scanner.go),
// returning recognized directives keyed by lower-cased name, with one
// layer of quoting already stripped by shave(), so callers use the
// values as they are. Unrecognized
// keys are dropped; every directive Authentication-Info defines
// (RFC 2617 §3.2.3) is routed to a named ItemType in scanner.go.
func scanPairs(s string) map[string]string {
	pairs := make(map[string]string)

	r := strings.NewReader(s)
	rec := lexrec.NewRecord(256, nil, func(l *lexrec.Lexer) {})

	l, err := lexrec.NewLexerRun("ParseAuthenticationInfo", r, rec, emitAuthenticationInfo)
	if err != nil {
		return pairs
	}

	for {
		item := l.NextItem()
		if item.Type == lexrec.ItemEOF || item.Type == lexrec.ItemError {
			break
		}

		switch item.Type {
		case ItemQop:
			pairs["qop"] = shave(item.Value)
		case ItemNextnonce:
			pairs["nextnonce"] = shave(item.Value)
		case ItemRspauth:
			pairs["rspauth"] = shave(item.Value)
		case ItemCnonce:
			pairs["cnonce"] = shave(item.Value)
		case ItemNc:
			pairs["nc"] = shave(item.Value)
		default:
			// ItemAuthParam or anything else: an unrecognized
			// directive, intentionally dropped (callers only ever
			// look up the five names above).
		}
	}

	return pairs
}
