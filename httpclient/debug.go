package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// generateCurlCommand creates a cURL command equivalent for the given request.
//
// The generated command can be used to reproduce the request from the command line.
// Sensitive headers like Authorization are included for debugging purposes.
//
// Example output:
//
//	curl -X POST 'https://api.example.com/users' \
//	  -H 'Content-Type: text/plain; charset=utf-8' \
//	  -d 'hello'
func generateCurlCommand(req *http.Request, body string) string {
	var parts []string

	parts = append(parts, "curl")

	// Method
	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}

	// URL
	parts = append(parts, fmt.Sprintf("'%s'", req.URL.String()))

	// Headers (sorted for consistent output)
	headerKeys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		for _, v := range req.Header[k] {
			parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, v))
		}
	}
	if req.Host != "" && req.Host != req.URL.Host {
		parts = append(parts, "-H", fmt.Sprintf("'Host: %s'", req.Host))
	}

	// Body
	if body != "" {
		// Escape single quotes in body
		bodyStr := strings.ReplaceAll(body, "'", "'\\''")
		parts = append(parts, "-d", fmt.Sprintf("'%s'", bodyStr))
	}

	return strings.Join(parts, " ")
}

// logRequest logs the outbound request using zerolog.
func logRequest(logger zerolog.Logger, callID string, req *http.Request, curl string) {
	ev := logger.Debug().
		Str("call_id", callID).
		Str("method", req.Method).
		Str("url", req.URL.String())
	if req.Host != "" && req.Host != req.URL.Host {
		ev = ev.Str("host", req.Host)
	}
	if curl != "" {
		ev = ev.Str("curl", curl)
	}
	ev.Msg("HTTP request")
}

// logResult logs a received response using zerolog.
func logResult(logger zerolog.Logger, callID, proto string, res *Result, duration time.Duration) {
	logger.Debug().
		Str("call_id", callID).
		Int("status", res.StatusCode).
		Str("proto", proto).
		Dur("duration_ms", duration).
		Int("bytes", len(res.RawBody)).
		Msg("HTTP response")
}

// logFailure logs a call that ended in a ClientError.
// The URL is the caller's raw URL, so its password is masked.
func logFailure(logger zerolog.Logger, callID string, cerr *ClientError, duration time.Duration) {
	logger.Debug().
		Str("call_id", callID).
		Str("url", redactURL(cerr.URL)).
		Stringer("kind", cerr.Kind).
		Int("status", cerr.StatusCode).
		Dur("duration_ms", duration).
		Err(redactErr(cerr.Err)).
		Msg(cerr.Message)
}

// unparseableURL stands in for a URL that cannot be parsed, and so cannot
// be redacted.
const unparseableURL = "<unparseable url>"

// redactURL masks the password in raw.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return unparseableURL
	}
	return u.Redacted()
}

// redactErr masks the URL carried by a *url.Error in err.
func redactErr(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: redactURL(urlErr.URL), Err: urlErr.Err}
}
