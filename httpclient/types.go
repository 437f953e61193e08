package httpclient

import "context"

// QueryParam is one query key with its values, in the order given.
type QueryParam struct {
	Key    string
	Values []string
}

// Call describes one outbound request.
type Call struct {
	// RawResponseWanted skips charset decoding; Result.Body then holds the
	// decompressed bytes as-is.
	RawResponseWanted bool

	// URL is the absolute http or https URL to call. Its own query
	// parameters are kept and placed after Query.
	URL string

	// Query parameters added ahead of the URL's own.
	Query []QueryParam

	// Method is the HTTP method. Empty means GET.
	Method string

	// Headers set by the caller. They override the defaults, and empty
	// values are not sent.
	Headers Headers

	// Body is the request body variant. Nil means NoContent.
	Body Content
}

// Result is a received response. Any status code, including 4xx and 5xx,
// is a Result rather than an error.
type Result struct {
	// Body is the decoded response text.
	Body string `json:"body"`

	// RawBody is the decompressed response body before charset decoding.
	RawBody []byte `json:"-"`

	StatusCode int `json:"statusCode"`

	// Headers starts with the status-line pseudo-header, e.g. "HTTP/2 200".
	// HTTP/2 names are lowercased. HTTP/1 names arrive in canonical MIME
	// form ("Content-Type"), not the server's wire casing, which net/http
	// does not keep.
	Headers Headers `json:"headers"`
}

// CallFunc is the shape of MakeCall. Instrumentation wraps values of this
// type rather than hooking into the client.
type CallFunc func(ctx context.Context, call Call) (*Result, error)
