package httpclient

import (
	"net/url"
	"strings"
)

// querySafe lists the characters left unescaped in query keys and values,
// on top of ASCII letters and digits. Commas are kept so multi-valued
// parameters read "k=a,b" the way older clients emitted them.
const querySafe = "*$@!:()~?/.,-_\\"

// encodeQuery renders params deterministically, in order. Multiple values
// are comma-joined; a key with no values, or only an empty one, is bare.
func encodeQuery(params []QueryParam) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(escapeExcept(p.Key, querySafe))

		if len(p.Values) == 0 || (len(p.Values) == 1 && p.Values[0] == "") {
			continue
		}
		sb.WriteByte('=')
		for j, v := range p.Values {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(escapeExcept(v, querySafe))
		}
	}
	return sb.String()
}

// parseQuery splits a raw query string into key/value pairs in order.
// Segments that fail to unescape are kept as written.
func parseQuery(raw string) []QueryParam {
	var out []QueryParam
	for _, seg := range strings.Split(raw, "&") {
		if seg == "" {
			continue
		}
		k, v, hasValue := strings.Cut(seg, "=")
		p := QueryParam{Key: unescapeOrKeep(k)}
		if hasValue {
			p.Values = []string{unescapeOrKeep(v)}
		}
		out = append(out, p)
	}
	return out
}

func unescapeOrKeep(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// escapeExcept percent-encodes every byte of s that is not an ASCII letter,
// digit, or listed in safe. Hex digits are upper case.
func escapeExcept(s, safe string) string {
	const hex = "0123456789ABCDEF"

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || (c < 0x80 && strings.IndexByte(safe, c) >= 0) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return sb.String()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
