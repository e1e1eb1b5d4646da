package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bz888/chatprobe/internal/logger"
	"github.com/bz888/chatprobe/internal/textstream"
)

const readBufferSize = 32 * 1024

var tracer = otel.Tracer("github.com/bz888/chatprobe/internal/api")

// ChatRequest is the body POSTed to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ClientConfig holds the configuration for the client
type ClientConfig struct {
	URL string
	// Timeout bounds one whole exchange, headers and body. Zero disables it.
	Timeout time.Duration
	// Verbose prints request progress, status and headers to Out.
	Verbose bool
	// Out receives streamed text as it arrives. Defaults to os.Stdout.
	Out io.Writer
	// ErrOut receives "Error: ..." lines. Defaults to os.Stderr.
	ErrOut     io.Writer
	HTTPClient *http.Client
}

// Client talks to one chat endpoint.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	verbose bool
	out     io.Writer
	errOut  io.Writer
	log     *logger.Logger
}

// NewClient creates a chat client from config, filling in defaults.
func NewClient(config ClientConfig) *Client {
	c := &Client{
		url:     config.URL,
		http:    config.HTTPClient,
		timeout: config.Timeout,
		verbose: config.Verbose,
		out:     config.Out,
		errOut:  config.ErrOut,
		log:     logger.NewLogger("chat client"),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.errOut == nil {
		c.errOut = os.Stderr
	}
	return c
}

func (c *Client) URL() string {
	return c.url
}

// Chat sends message and returns the full streamed reply. Every chunk is
// written to the client's output as soon as it is decoded, followed by one
// newline once the stream ends. Errors are reported on the error output
// before being returned.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	requestID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "chat.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.request_id", requestID),
		attribute.String("http.url", c.url),
	)

	text, status, err := c.chat(ctx, requestID, message)
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Int("chat.response_bytes", len(text)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Error("request ", requestID, " failed: ", err)
		fmt.Fprintln(c.errOut, "Error:", err.Error())
		return "", err
	}
	return text, nil
}

func (c *Client) chat(ctx context.Context, requestID, message string) (string, int, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return "", 0, fmt.Errorf("failed to serialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain, */*")
	req.Header.Set("X-Request-ID", requestID)

	c.progress("Sending request...")
	c.log.Info("POST ", c.url, " request ", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, c.wrap(ctx, "send request", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("failed to close response body: ", err)
		}
	}()

	if c.verbose {
		fmt.Fprintln(c.out, "Response status:", resp.StatusCode)
		fmt.Fprintln(c.out, "Response headers:", headerString(resp.Header))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", resp.StatusCode, c.wrap(ctx, "read error body", err)
		}
		return "", resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	dec := c.decoderFor(resp.Header.Get("Content-Type"))

	c.progress("Reading stream...")
	var acc strings.Builder
	buf := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			c.emit(&acc, dec.Decode(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return acc.String(), resp.StatusCode, c.wrap(ctx, "read stream", err)
		}
	}
	c.emit(&acc, dec.Flush())
	fmt.Fprintln(c.out)

	return acc.String(), resp.StatusCode, nil
}

func (c *Client) emit(acc *strings.Builder, chunk string) {
	if chunk == "" {
		return
	}
	acc.WriteString(chunk)
	io.WriteString(c.out, chunk)
}

func (c *Client) progress(line string) {
	if c.verbose {
		fmt.Fprintln(c.out, line)
	}
}

func (c *Client) decoderFor(contentType string) *textstream.Decoder {
	var charset string
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		charset = params["charset"]
	}
	dec, err := textstream.NewDecoder(charset)
	if err != nil {
		c.log.Warn(err, ", falling back to utf-8")
		dec, _ = textstream.NewDecoder("")
	}
	return dec
}

func (c *Client) wrap(ctx context.Context, op string, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &timeoutError{op: op, after: c.timeout.String(), err: err}
	}
	return &TransportError{Op: op, Err: err}
}

// headerString renders headers as a flat JSON object, joining repeated
// values with ", ".
func headerString(h http.Header) string {
	flat := make(map[string]string, len(h))
	for k, v := range h {
		flat[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return fmt.Sprint(flat)
	}
	return string(b)
}
