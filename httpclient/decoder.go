package httpclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// utf8DecodingError replaces a body that is neither valid UTF-8 nor
// declared as Latin-1. The status and headers are still returned.
const utf8DecodingError = "utf-8 decoding error"

// latin1Charsets are the charset labels decoded as ISO-8859-1. The match is
// exact; "ISO-8859-1" in upper case is decoded as UTF-8.
var latin1Charsets = map[string]struct{}{
	"latin1":     {},
	"us-ascii":   {},
	"iso-8859-1": {},
	"iso_8859-1": {},
}

// decodeResponse turns resp into a Result. resp.Body is drained but not
// closed. At most limit bytes are accepted after decompression.
func decodeResponse(resp *http.Response, rawURL string, raw bool, limit int64) (*Result, *ClientError) {
	encodingName := strings.ToLower(strings.TrimSpace(resp.Header.Get(headerContentEncoding)))
	if !supportedEncoding(encodingName) {
		return nil, errInvalidEncoding(rawURL, resp.StatusCode, resp.Header.Get(headerContentEncoding))
	}

	data, err := readBody(resp.Body, encodingName, limit)
	if err != nil {
		return nil, classifyError(stageRead, rawURL, resp.StatusCode, err)
	}

	res := &Result{
		RawBody:    data,
		StatusCode: resp.StatusCode,
		Headers:    responseHeaders(resp),
	}
	if raw {
		res.Body = string(data)
	} else {
		res.Body = decodeText(resp.Header.Get(headerContentType), data)
	}
	return res, nil
}

func supportedEncoding(name string) bool {
	switch name {
	case "", "gzip", "deflate", "br":
		return true
	default:
		return false
	}
}

// readBody decompresses body according to encodingName and reads it fully.
// An empty body is returned as-is whatever the encoding, so HEAD and 204
// responses that still advertise an encoding decode cleanly.
func readBody(body io.Reader, encodingName string, limit int64) ([]byte, error) {
	if body == nil {
		return []byte{}, nil
	}

	br := bufio.NewReader(body)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		return nil, err
	}

	var r io.Reader = br
	switch encodingName {
	case "gzip":
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case "deflate":
		fr := flate.NewReader(br)
		defer fr.Close()
		r = fr
	case "br":
		r = brotli.NewReader(br)
	}

	return readLimited(r, limit)
}

// decodeText resolves the body text from the charset parameter of
// contentType.
func decodeText(contentType string, data []byte) string {
	if _, ok := latin1Charsets[charsetParam(contentType)]; ok {
		text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err == nil {
			return string(text)
		}
	}

	if _, _, err := transform.Bytes(encoding.UTF8Validator, data); err != nil {
		return utf8DecodingError
	}
	return string(data)
}

// charsetParam returns the charset parameter of a Content-Type value as
// written, or "" when there is none.
func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		return params["charset"]
	}
	if known, ok := ParseContentType(contentType).(KnownContentType); ok {
		return known.Charset.String()
	}
	return ""
}

// statusLine renders the status-line pseudo-header: "HTTP/2 404" for
// HTTP/2, "HTTP/1.1 404 Not Found" otherwise.
func statusLine(resp *http.Response) string {
	if resp.ProtoMajor == 2 {
		return "HTTP/2 " + strconv.Itoa(resp.StatusCode)
	}

	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}

	line := fmt.Sprintf("HTTP/%d.%d %d %s", resp.ProtoMajor, resp.ProtoMinor, resp.StatusCode, reason)
	return strings.TrimRight(line, " ")
}

// responseHeaders builds the result headers: the status line first, then
// protocol-level headers, then content-level headers. Each group is sorted
// by name. HTTP/2 header names are lowercased; HTTP/1 names keep the
// canonical form net/http parsed them into.
func responseHeaders(resp *http.Response) Headers {
	lower := resp.ProtoMajor == 2

	var protocol, content Headers
	for _, hdr := range FromHTTPHeader(resp.Header) {
		if lower {
			hdr.Name = strings.ToLower(hdr.Name)
		}
		if isContentHeader(hdr.Name) {
			content = append(content, hdr)
		} else {
			protocol = append(protocol, hdr)
		}
	}
	sortByName(protocol)
	sortByName(content)

	out := make(Headers, 0, 1+len(protocol)+len(content))
	out = append(out, Header{Name: statusLine(resp), Value: ""})
	out = append(out, protocol...)
	out = append(out, content...)
	return out
}

// isContentHeader reports whether name describes the entity rather than
// the exchange.
func isContentHeader(name string) bool {
	n := strings.ToLower(name)
	if strings.HasPrefix(n, "content-") {
		return true
	}
	switch n {
	case "expires", "last-modified", "allow":
		return true
	default:
		return false
	}
}

func sortByName(h Headers) {
	sort.SliceStable(h, func(i, j int) bool { return h[i].Name < h[j].Name })
}
