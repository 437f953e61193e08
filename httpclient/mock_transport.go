package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
)

// MockResponse describes a canned response served by MockTransport.
type MockResponse struct {
	StatusCode int

	// Header is cloned into every response. May be nil.
	Header http.Header

	// Body is served as-is; set Content-Encoding in Header when it is
	// compressed.
	Body []byte

	// HTTP2 marks the response as negotiated over HTTP/2. Otherwise it is
	// HTTP/1.1.
	HTTP2 bool
}

// MockTransport provides a configurable http.RoundTripper for testing.
// It allows stubbing responses and verifying request expectations.
//
//	mock := httpclient.NewMockTransport().StubResponse(http.StatusOK, "pong")
//	client, _ := httpclient.New(httpclient.WithMockTransport(mock))
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []stub
	defaultResp *MockResponse
	defaultErr  error
	requests    []*http.Request
	requestHook func(*http.Request)
}

type stub struct {
	matcher  func(*http.Request) bool
	response *MockResponse
	err      error
}

// NewMockTransport creates a new MockTransport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse stubs all requests to return the given response.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	return m.StubMockResponse(MockResponse{StatusCode: statusCode, Body: []byte(body)})
}

// StubMockResponse stubs all requests to return resp.
func (m *MockTransport) StubMockResponse(resp MockResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &resp
	return m
}

// StubError stubs all requests to return the given error.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubPath stubs requests matching the path to return the given response.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, MockResponse{StatusCode: statusCode, Body: []byte(body)})
}

// StubPathRegex stubs requests matching the path regex to return the given response.
func (m *MockTransport) StubPathRegex(pattern string, statusCode int, body string) *MockTransport {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool {
		return re.MatchString(req.URL.Path)
	}, MockResponse{StatusCode: statusCode, Body: []byte(body)})
}

// StubMethod stubs requests with the given method to return the given response.
func (m *MockTransport) StubMethod(method string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, MockResponse{StatusCode: statusCode, Body: []byte(body)})
}

// StubFunc stubs requests matching the predicate to return resp.
func (m *MockTransport) StubFunc(matcher func(*http.Request) bool, resp MockResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, response: &resp})
	return m
}

// StubFuncError stubs requests matching the predicate to return the given error.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher: matcher,
		err:     err,
	})
	return m
}

// OnRequest sets a hook that is called for each request.
// Useful for assertions or capturing request details.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Check stubs in order (first match wins)
	for _, s := range m.stubs {
		if s.matcher(req) {
			if s.err != nil {
				return nil, s.err
			}
			return s.response.build(req), nil
		}
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultResp != nil {
		return m.defaultResp.build(req), nil
	}

	return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

// build creates a fresh *http.Response so a stub can be served many times.
func (r *MockResponse) build(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	resp := &http.Response{
		Status:        fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode)),
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
	if r.HTTP2 {
		resp.Proto, resp.ProtoMajor, resp.ProtoMinor = "HTTP/2.0", 2, 0
	}
	return resp
}

// WithMockTransport is a convenience function to create a client with a mock transport.
func WithMockTransport(mock *MockTransport) Option {
	return WithRoundTripper(mock)
}
