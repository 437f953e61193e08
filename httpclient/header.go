package httpclient

import (
	"net/http"
	"sort"
	"strings"
)

const (
	headerAccept          = "Accept"
	headerAcceptEncoding  = "Accept-Encoding"
	headerAuthorization   = "Authorization"
	headerContentType     = "Content-Type"
	headerContentEncoding = "Content-Encoding"
)

// Header is a single header as it appears on the wire.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered header collection. Names may repeat and all
// lookups compare names case-insensitively.
type Headers []Header

// Lookup returns the value of the first header named name.
func (h Headers) Lookup(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// Get returns the value of the first header named name, or "".
func (h Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Values returns every value of name in order.
func (h Headers) Values(name string) []string {
	var vals []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			vals = append(vals, hdr.Value)
		}
	}
	return vals
}

// Has reports whether a header named name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Add appends a header without touching existing ones.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Set replaces every header named name with a single entry. The entry takes
// the position of the first match, or is appended if there was none.
func (h *Headers) Set(name, value string) {
	out := (*h)[:0:0]
	replaced := false
	for _, hdr := range *h {
		if !strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr)
			continue
		}
		if !replaced {
			out = append(out, Header{Name: name, Value: value})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	*h = out
}

// Del removes every header named name.
func (h *Headers) Del(name string) {
	out := (*h)[:0:0]
	for _, hdr := range *h {
		if !strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr)
		}
	}
	*h = out
}

// Clone returns a copy that shares nothing with h.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Merge applies overrides on top of defaults. An override always wins over a
// default of the same name, and a name present in both appears once.
func Merge(defaults, overrides Headers) Headers {
	out := defaults.Clone()
	for _, hdr := range overrides {
		out.Set(hdr.Name, hdr.Value)
	}
	return out
}

// ToHTTPHeader converts h to an http.Header, keeping repeated values.
func (h Headers) ToHTTPHeader() http.Header {
	out := make(http.Header, len(h))
	for _, hdr := range h {
		out.Add(hdr.Name, hdr.Value)
	}
	return out
}

// FromHTTPHeader flattens an http.Header into Headers sorted by name.
// Repeated values of one name are joined with ",".
func FromHTTPHeader(hh http.Header) Headers {
	names := make([]string, 0, len(hh))
	for k := range hh {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(Headers, 0, len(names))
	for _, k := range names {
		out = append(out, Header{Name: k, Value: strings.Join(hh[k], ",")})
	}
	return out
}
