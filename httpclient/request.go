package httpclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// defaultHeaders are sent on every call unless the caller overrides them.
func defaultHeaders() Headers {
	return Headers{
		{Name: headerAccept, Value: "*/*"},
		{Name: headerAcceptEncoding, Value: "deflate, gzip, br"},
	}
}

// NormalizeURL validates rawURL and rebuilds it from its scheme, host, port
// and path. The query becomes query followed by the URL's own parameters.
// User-info is removed from the URL and returned as a Basic credential
// ("" when absent).
//
// No network activity happens here; a bad URL is rejected with
// KindInvalidURI or KindUnsupportedProtocol.
func NormalizeURL(rawURL string, query []QueryParam) (*url.URL, string, *ClientError) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", errInvalidURI(rawURL, err)
	}
	if !u.IsAbs() {
		return nil, "", errInvalidURI(rawURL, fmt.Errorf("url %q is not absolute", rawURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", errUnsupportedProtocol(rawURL)
	}
	if u.Hostname() == "" {
		return nil, "", errInvalidURI(rawURL, fmt.Errorf("url %q has no host", rawURL))
	}

	params := make([]QueryParam, 0, len(query))
	params = append(params, query...)
	params = append(params, parseQuery(u.RawQuery)...)

	out := &url.URL{
		Scheme:   u.Scheme,
		Host:     hostPort(u),
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: encodeQuery(params),
	}
	if out.Path == "" {
		out.Path = "/"
	}

	return out, basicCredential(u.User), nil
}

// hostPort lowercases the host and drops the port when it is the scheme's
// default.
func hostPort(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}

	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}

// basicCredential encodes unescaped "user:password" user-info as base64.
func basicCredential(user *url.Userinfo) string {
	if user == nil {
		return ""
	}
	info := user.Username()
	if pass, ok := user.Password(); ok {
		info += ":" + pass
	}
	if info == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(info))
}

// BuildRequest turns a Call into an *http.Request bound to ctx.
//
// Header precedence, lowest first:
//   - Authorization derived from URL user-info
//   - Accept and Accept-Encoding defaults
//   - the Content-Type implied by the body variant
//   - the caller's headers (the last of a repeated name wins)
//
// Caller headers with an empty value are skipped, so setting a default to ""
// suppresses it. Headers are never duplicated.
func BuildRequest(ctx context.Context, call Call) (*http.Request, *ClientError) {
	target, credential, cerr := NormalizeURL(call.URL, call.Query)
	if cerr != nil {
		return nil, cerr
	}

	body := call.Body
	if body == nil {
		body = NoContent{}
	}

	out := make(Headers, 0, len(call.Headers)+3)
	if credential != "" {
		out.Set(headerAuthorization, "Basic "+credential)
	}

	// Content-Type lives in its own slot so the body variant and an explicit
	// header cannot both end up on the wire.
	contentType := body.contentType()

	host := ""
	for _, hdr := range Merge(defaultHeaders(), call.Headers) {
		if hdr.Value == "" {
			continue
		}
		if !httpguts.ValidHeaderFieldName(hdr.Name) {
			return nil, newClientError(KindProtocolFailure, call.URL, 0,
				fmt.Sprintf("invalid header field name %q", hdr.Name), nil)
		}
		if !httpguts.ValidHeaderFieldValue(hdr.Value) {
			return nil, newClientError(KindProtocolFailure, call.URL, 0,
				fmt.Sprintf("invalid header field value for %q", hdr.Name), nil)
		}

		switch {
		case strings.EqualFold(hdr.Name, headerContentType):
			contentType = hdr.Value
		case strings.EqualFold(hdr.Name, "Host"):
			host = hdr.Value
		default:
			out.Set(hdr.Name, hdr.Value)
		}
	}

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader *strings.Reader
	if _, none := body.(NoContent); !none {
		reader = strings.NewReader(body.payload())
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, target.String(), reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target.String(), nil)
	}
	if err != nil {
		return nil, newClientError(KindProtocolFailure, call.URL, 0, err.Error(), err)
	}

	req.Header = out.ToHTTPHeader()
	if contentType != "" {
		req.Header.Set(headerContentType, contentType)
	}
	if host != "" {
		req.Host = host
	}

	return req, nil
}

// RequestBuilder provides a fluent API for assembling a Call.
//
// Create a RequestBuilder using Client.Request():
//
//	res, err := client.Request("https://api.example.com/users").
//	    Query("page", "1").
//	    Header("Authorization", "Bearer "+token).
//	    Get(ctx)
type RequestBuilder struct {
	client *Client
	call   Call
}

// Query appends a query parameter. Parameters added here are placed before
// those already in the URL.
func (rb *RequestBuilder) Query(key string, values ...string) *RequestBuilder {
	rb.call.Query = append(rb.call.Query, QueryParam{Key: key, Values: values})
	return rb
}

// Header sets a request header, replacing an earlier one of the same name.
func (rb *RequestBuilder) Header(name, value string) *RequestBuilder {
	rb.call.Headers.Set(name, value)
	return rb
}

// Headers sets several request headers in order.
func (rb *RequestBuilder) Headers(headers Headers) *RequestBuilder {
	for _, hdr := range headers {
		rb.call.Headers.Set(hdr.Name, hdr.Value)
	}
	return rb
}

// Body sets the body variant.
//
// Example:
//
//	client.Request(u).Body(httpclient.StringContent("hello")).Post(ctx)
func (rb *RequestBuilder) Body(c Content) *RequestBuilder {
	rb.call.Body = c
	return rb
}

// Form sets a form-encoded body from values.
func (rb *RequestBuilder) Form(values url.Values) *RequestBuilder {
	rb.call.Body = FormContent(values.Encode())
	return rb
}

// Raw asks for the response body without charset decoding.
func (rb *RequestBuilder) Raw() *RequestBuilder {
	rb.call.RawResponseWanted = true
	return rb
}

// Call returns the assembled Call.
func (rb *RequestBuilder) Call() Call {
	return rb.call
}

// Get executes a GET request.
func (rb *RequestBuilder) Get(ctx context.Context) (*Result, error) {
	return rb.Do(ctx, http.MethodGet)
}

// Head executes a HEAD request.
func (rb *RequestBuilder) Head(ctx context.Context) (*Result, error) {
	return rb.Do(ctx, http.MethodHead)
}

// Post executes a POST request.
func (rb *RequestBuilder) Post(ctx context.Context) (*Result, error) {
	return rb.Do(ctx, http.MethodPost)
}

// Put executes a PUT request.
func (rb *RequestBuilder) Put(ctx context.Context) (*Result, error) {
	return rb.Do(ctx, http.MethodPut)
}

// Patch executes a PATCH request.
func (rb *RequestBuilder) Patch(ctx context.Context) (*Result, error) {
	return rb.Do(ctx, http.MethodPatch)
}

// Delete executes a DELETE request.
func (rb *RequestBuilder) Delete(ctx context.Context) (*Result, error) {
	return rb.Do(ctx, http.MethodDelete)
}

// Do executes the request with an arbitrary method.
func (rb *RequestBuilder) Do(ctx context.Context, method string) (*Result, error) {
	rb.call.Method = method
	return rb.client.MakeCall(ctx, rb.call)
}
