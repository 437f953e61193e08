package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockBase = "https://api.example.com"

func newMockClient(t *testing.T, mock *MockTransport) *Client {
	t.Helper()

	client, err := New(WithMockTransport(mock))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestMockTransport_StubResponse(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().StubResponse(http.StatusOK, `{"status":"ok"}`)
	client := newMockClient(t, mock)

	res, err := client.Request(mockBase + "/test").Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body)
}

func TestMockTransport_StubError(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().StubError(errors.New("network error"))
	client := newMockClient(t, mock)

	_, err := client.Request(mockBase + "/test").Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network error")

	var cerr *ClientError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, KindProtocolFailure, cerr.Kind)
}

func TestMockTransport_StubPath(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().
		StubPath("/users", http.StatusOK, `[{"id":1}]`).
		StubPath("/posts", http.StatusOK, `[{"id":2}]`)
	client := newMockClient(t, mock)

	users, err := client.Request(mockBase + "/users").Get(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, users.Body)

	posts, err := client.Request(mockBase + "/posts").Get(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":2}]`, posts.Body)
}

func TestMockTransport_StubPathRegex(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().StubPathRegex(`^/users/\d+$`, http.StatusOK, `{"id":42}`)
	client := newMockClient(t, mock)

	res, err := client.Request(mockBase + "/users/42").Get(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42}`, res.Body)

	_, err = client.Request(mockBase + "/users/abc").Get(context.Background())
	require.Error(t, err)
}

func TestMockTransport_StubMethod(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().
		StubMethod(http.MethodGet, http.StatusOK, "get").
		StubMethod(http.MethodPost, http.StatusCreated, "post")
	client := newMockClient(t, mock)

	res, err := client.Request(mockBase + "/r").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "get", res.Body)

	res, err = client.Request(mockBase + "/r").Body(StringContent("x")).Post(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "post", res.Body)
}

func TestMockTransport_StubFunc(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().
		StubFunc(func(req *http.Request) bool {
			return req.Header.Get("X-Tenant") == "a"
		}, MockResponse{
			StatusCode: http.StatusOK,
			Header:     http.Header{"X-Served-By": {"a"}},
			Body:       []byte("tenant a"),
			HTTP2:      true,
		}).
		StubFuncError(func(*http.Request) bool { return true }, errors.New("unknown tenant"))
	client := newMockClient(t, mock)

	res, err := client.Request(mockBase).Header("X-Tenant", "a").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tenant a", res.Body)
	assert.Equal(t, "HTTP/2 200", res.Headers[0].Name)
	assert.Equal(t, "a", res.Headers.Get("x-served-by"))

	_, err = client.Request(mockBase).Header("X-Tenant", "b").Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tenant")
}

func TestMockTransport_RequestTracking(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")
	client := newMockClient(t, mock)

	assert.Nil(t, mock.LastRequest())

	_, err := client.Request(mockBase + "/first").Get(context.Background())
	require.NoError(t, err)
	_, err = client.Request(mockBase + "/second").Query("q", "1").Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, mock.RequestCount())
	require.Len(t, mock.Requests(), 2)
	assert.Equal(t, "/first", mock.Requests()[0].URL.Path)

	last := mock.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, "/second", last.URL.Path)
	assert.Equal(t, "q=1", last.URL.RawQuery)
}

func TestMockTransport_OnRequest(t *testing.T) {
	t.Parallel()

	var captured *http.Request
	mock := NewMockTransport().
		StubResponse(http.StatusOK, "ok").
		OnRequest(func(req *http.Request) { captured = req })
	client := newMockClient(t, mock)

	_, err := client.Request(mockBase + "/hook").Header("X-Custom", "value").Get(context.Background())
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "value", captured.Header.Get("X-Custom"))
	assert.Equal(t, "*/*", captured.Header.Get("Accept"))
}

func TestMockTransport_NoStubError(t *testing.T) {
	t.Parallel()

	client := newMockClient(t, NewMockTransport())

	_, err := client.Request(mockBase + "/unstubbed").Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stub found")
}

func TestMockTransport_Reset(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")
	client := newMockClient(t, mock)

	_, err := client.Request(mockBase).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mock.RequestCount())

	mock.Reset()
	assert.Equal(t, 0, mock.RequestCount())

	_, err = client.Request(mockBase).Get(context.Background())
	require.Error(t, err)
}

func TestMockResponse_BuildIsRepeatable(t *testing.T) {
	t.Parallel()

	resp := MockResponse{StatusCode: http.StatusOK, Body: []byte("same body")}

	for range 3 {
		r := resp.build(nil)
		got, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "same body", string(got))
		assert.Equal(t, "HTTP/1.1", r.Proto)
		assert.Equal(t, "200 OK", r.Status)
	}
}
