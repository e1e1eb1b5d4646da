package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamHandler(chunks ...[]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			w.Write(c)
			flusher.Flush()
		}
	}
}

func newTestClient(url string, timeout time.Duration) (*Client, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := NewClient(ClientConfig{URL: url, Timeout: timeout, Out: &out, ErrOut: &errOut})
	return c, &out, &errOut
}

func TestChatStreamsChunks(t *testing.T) {
	srv := httptest.NewServer(streamHandler([]byte("Hello"), []byte(" World")))
	defer srv.Close()

	c, out, errOut := newTestClient(srv.URL, time.Second)
	got, err := c.Chat(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)
	assert.Equal(t, "Hello World\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestChatSendsJSONRequest(t *testing.T) {
	var (
		method, contentType, requestID string
		payload                        ChatRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		requestID = r.Header.Get("X-Request-ID")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &payload)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, _, _ := newTestClient(srv.URL, 0)
	message := `Create a file called hello.txt with content "Hello World"`
	_, err := c.Chat(context.Background(), message)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, message, payload.Message)
	_, err = uuid.Parse(requestID)
	assert.NoError(t, err)
}

func TestChatVerboseProgress(t *testing.T) {
	srv := httptest.NewServer(streamHandler([]byte("pong")))
	defer srv.Close()

	var out bytes.Buffer
	c := NewClient(ClientConfig{URL: srv.URL, Verbose: true, Out: &out, ErrOut: io.Discard})
	got, err := c.Chat(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)

	lines := out.String()
	assert.Contains(t, lines, "Sending request...\n")
	assert.Contains(t, lines, "Response status: 200\n")
	assert.Contains(t, lines, `"content-type":"text/plain; charset=utf-8"`)
	assert.Contains(t, lines, "Reading stream...\npong\n")
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	c, out, errOut := newTestClient(srv.URL, time.Second)
	got, err := c.Chat(context.Background(), "hi")

	require.Error(t, err)
	assert.Empty(t, got)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "internal error")

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "internal error", httpErr.Body)

	assert.Empty(t, out.String())
	assert.Equal(t, "Error: "+err.Error()+"\n", errOut.String())
}

func TestChatConnectionReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	c, _, errOut := newTestClient(srv.URL, time.Second)
	_, err := c.Chat(context.Background(), "hi")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "got %v", err)
	assert.Equal(t, "send request", transportErr.Op)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Contains(t, errOut.String(), "Error: ")
}

func TestChatStreamBrokenMidway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	c, out, _ := newTestClient(srv.URL, time.Second)
	_, err := c.Chat(context.Background(), "hi")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "got %v", err)
	assert.Equal(t, "read stream", transportErr.Op)
	assert.Equal(t, "partial", out.String())
}

func TestChatTimeoutMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("thinking"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, _, _ := newTestClient(srv.URL, 100*time.Millisecond)
	start := time.Now()
	_, err := c.Chat(context.Background(), "hi")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChatSplitMultiByteRune(t *testing.T) {
	euro := []byte("€uro")
	srv := httptest.NewServer(streamHandler(euro[:1], euro[1:2], euro[2:]))
	defer srv.Close()

	c, out, _ := newTestClient(srv.URL, time.Second)
	got, err := c.Chat(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "€uro", got)
	assert.Equal(t, "€uro\n", out.String())
}

func TestChatHonoursCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		w.Write([]byte{'c', 'a', 'f', 0xE9})
	}))
	defer srv.Close()

	c, _, _ := newTestClient(srv.URL, time.Second)
	got, err := c.Chat(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "café", got)
}
