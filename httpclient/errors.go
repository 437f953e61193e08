package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
)

// errorPrefix marks failures raised by the HTTP stack itself, so callers can
// tell them apart from an ordinary non-2xx response.
const errorPrefix = "Internal HTTP-stack exception: "

// ErrorKind classifies why a call produced no Result.
type ErrorKind int

const (
	// KindUnsupportedProtocol: the URL scheme is not http or https.
	KindUnsupportedProtocol ErrorKind = iota + 1
	// KindInvalidURI: the URL could not be parsed as an absolute URI.
	KindInvalidURI
	// KindInvalidEncoding: the response Content-Encoding is not supported.
	KindInvalidEncoding
	// KindTimeout: the call exceeded its deadline.
	KindTimeout
	// KindIOFailure: reading or decoding the response stream failed.
	KindIOFailure
	// KindProtocolFailure: the HTTP engine rejected or failed the request.
	KindProtocolFailure
)

// String returns the value used for the error.type metric attribute.
func (k ErrorKind) String() string {
	switch k {
	case KindUnsupportedProtocol:
		return "unsupported_protocol"
	case KindInvalidURI:
		return "invalid_uri"
	case KindInvalidEncoding:
		return "invalid_encoding"
	case KindTimeout:
		return "timeout"
	case KindIOFailure:
		return "io_failure"
	case KindProtocolFailure:
		return "protocol_failure"
	default:
		return "unknown"
	}
}

// ClientError is the failure result of MakeCall. StatusCode is 0 when no
// response was received.
//
// Use errors.As to get at it:
//
//	res, err := client.MakeCall(ctx, call)
//	var cerr *httpclient.ClientError
//	if errors.As(err, &cerr) && cerr.Kind == httpclient.KindTimeout {
//	    // ...
//	}
type ClientError struct {
	URL        string
	StatusCode int
	Kind       ErrorKind
	Message    string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ClientError) Error() string { return e.Message }

func (e *ClientError) Unwrap() error { return e.Err }

func newClientError(kind ErrorKind, rawURL string, status int, msg string, cause error) *ClientError {
	return &ClientError{
		URL:        rawURL,
		StatusCode: status,
		Kind:       kind,
		Message:    errorPrefix + msg,
		Err:        cause,
	}
}

func errUnsupportedProtocol(rawURL string) *ClientError {
	return newClientError(KindUnsupportedProtocol, rawURL, 0, "Unsupported protocol", nil)
}

func errInvalidURI(rawURL string, cause error) *ClientError {
	return newClientError(KindInvalidURI, rawURL, 0, "Invalid URI", cause)
}

func errInvalidEncoding(rawURL string, status int, encoding string) *ClientError {
	return newClientError(KindInvalidEncoding, rawURL, status,
		fmt.Sprintf("Unsupported content encoding: %q", encoding), nil)
}

// stage is the point in a call at which an error surfaced.
type stage int

const (
	// stageSend covers everything up to and including response headers.
	stageSend stage = iota
	// stageRead covers draining and decompressing the response body.
	stageRead
)

// classifyError maps a Go error to a ClientError. It has no side effects.
//
// Deadlines are checked first so a timeout is reported as such no matter
// where it happened. After that the stage decides: failures while sending are
// protocol failures, failures while reading the body are I/O failures.
func classifyError(st stage, rawURL string, status int, err error) *ClientError {
	if err == nil {
		return nil
	}

	var cerr *ClientError
	if errors.As(err, &cerr) {
		return cerr
	}

	if isTimeout(err) {
		return newClientError(KindTimeout, rawURL, 0, "Timeout", err)
	}

	if errors.Is(err, context.Canceled) {
		return newClientError(KindIOFailure, rawURL, 0, "Request cancelled", err)
	}

	msg := causeMessage(err)

	if errors.Is(err, ErrResponseTooLarge) {
		return newClientError(KindProtocolFailure, rawURL, status, msg, err)
	}

	switch st {
	case stageRead:
		return newClientError(KindIOFailure, rawURL, 0, msg, err)
	default:
		return newClientError(KindProtocolFailure, rawURL, status, msg, err)
	}
}

// isTimeout reports whether err is a deadline expiry of any flavour.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// causeMessage strips the *url.Error envelope, whose text repeats the
// method and URL the caller already has.
func causeMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
