package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client executes calls over a shared Transport.
//
// Create a Client using New(), or share one Transport across several
// clients with NewWithTransport():
//
//	client, err := httpclient.New(httpclient.WithServiceName("runtime"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	res, err := client.MakeCall(ctx, httpclient.Call{
//	    URL:    "https://api.example.com/users",
//	    Method: http.MethodGet,
//	})
type Client struct {
	// transport is the pooled execution engine.
	transport *Transport

	// config is the transport's configuration.
	config *internalConfig

	// owned reports whether Close should close the transport.
	owned bool
}

// New creates a Client with its own Transport. Use NewWithTransport to share
// a Transport between clients.
func New(opts ...Option) (*Client, error) {
	t, err := NewTransport(opts...)
	if err != nil {
		return nil, err
	}

	c := NewWithTransport(t)
	c.owned = true
	return c, nil
}

// NewWithTransport creates a Client on an existing Transport. Closing the
// Client leaves the Transport open.
func NewWithTransport(t *Transport) *Client {
	return &Client{
		transport: t,
		config:    t.cfg,
	}
}

// Transport returns the Transport the client sends through.
func (c *Client) Transport() *Transport {
	return c.transport
}

// Close closes the Transport if New created it.
func (c *Client) Close() {
	if c.owned {
		c.transport.Close()
	}
}

// Request creates a new RequestBuilder for the given URL.
//
// Example:
//
//	res, err := client.Request("https://api.example.com/users").
//	    Query("page", "2").
//	    Get(ctx)
func (c *Client) Request(rawURL string) *RequestBuilder {
	return &RequestBuilder{
		client: c,
		call:   Call{URL: rawURL},
	}
}

// CallFunc returns MakeCall as a CallFunc, for wrapping by instrumentation.
func (c *Client) CallFunc() CallFunc {
	return c.MakeCall
}

// MakeCall performs one HTTP exchange.
//
// Any received response, 4xx and 5xx included, is a *Result. Every failure
// is returned as a *ClientError; MakeCall does not panic and does not retry.
// A single deadline of Config.Timeout covers connecting, sending, reading
// and decoding.
func (c *Client) MakeCall(ctx context.Context, call Call) (res *Result, err error) {
	start := time.Now()
	callID := uuid.NewString()
	logger := c.config.Logger

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = c.fail(ctx, callID, call, nil, start,
				newClientError(KindProtocolFailure, call.URL, 0, fmt.Sprintf("panic: %v", r), nil))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.httpConfig.Timeout)
	defer cancel()

	req, cerr := BuildRequest(ctx, call)
	if cerr != nil {
		return nil, c.fail(ctx, callID, call, nil, start, cerr)
	}

	if c.config.Debug {
		curl := ""
		if c.config.GenerateCurl {
			body := ""
			if call.Body != nil {
				body = call.Body.payload()
			}
			curl = generateCurlCommand(req, body)
		}
		logRequest(logger, callID, req, curl)
	}

	resp, sendErr := c.transport.Execute(req)
	if sendErr != nil {
		return nil, c.fail(ctx, callID, call, req, start, classifyError(stageSend, call.URL, 0, sendErr))
	}

	limit := c.config.httpConfig.MaxResponseBytes
	baseAttrs := c.config.baseAttributes()
	resp.Body = newLimitedBody(resp.Body, limit, func(n int64) {
		c.config.Metrics.recordResponseBodySize(ctx, n, baseAttrs)
	})
	defer resp.Body.Close()

	readStart := time.Now()
	res, cerr = decodeResponse(resp, call.URL, call.RawResponseWanted, limit)
	c.config.Metrics.recordContentTransferDuration(ctx, time.Since(readStart), baseAttrs)
	if cerr != nil {
		// A body read cut off by the call deadline surfaces as a plain
		// read error on some connections.
		if cerr.Kind == KindIOFailure && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cerr = newClientError(KindTimeout, call.URL, 0, "Timeout", cerr.Err)
		}
		return nil, c.fail(ctx, callID, call, req, start, cerr)
	}

	duration := time.Since(start)
	c.config.Metrics.recordRequestDuration(ctx, duration,
		callAttributes(baseAttrs, req.Method, req.URL, res.StatusCode, ""))

	if c.config.Debug {
		logResult(logger, callID, resp.Proto, res, duration)
	}

	return res, nil
}

// fail records a failed call and returns cerr as an error. req is nil when
// the call failed before a request was built.
func (c *Client) fail(
	ctx context.Context,
	callID string,
	call Call,
	req *http.Request,
	start time.Time,
	cerr *ClientError,
) error {
	// The call context may be done; metrics still need to be exported.
	ctx = context.WithoutCancel(ctx)

	duration := time.Since(start)
	baseAttrs := c.config.baseAttributes()
	c.config.Metrics.recordError(ctx, cerr.Kind.String(), baseAttrs)

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	if req != nil {
		c.config.Metrics.recordRequestDuration(ctx, duration,
			callAttributes(baseAttrs, method, req.URL, cerr.StatusCode, cerr.Kind.String()))
	}

	if c.config.Debug {
		logFailure(c.config.Logger, callID, cerr, duration)
	}
	return cerr
}
