// Package transport provides the HTTP transport used to send encoded
// GraphQL payloads.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	graphql "github.com/EVANA-AG/gqlupload/v2"
)

var (
	ErrReadBody  = errors.New("read body")
	ErrRequest   = errors.New("graphql: server returned a non-200 status code")
	ErrNoPayload = errors.New("graphql: no payload to post")
)

type (
	Option func(*HTTPTransport)

	HTTPRequestDoer interface {
		Do(r *http.Request) (*http.Response, error)
	}

	// HTTPTransport posts payloads to a GraphQL endpoint over HTTP.
	HTTPTransport struct {
		httpClient HTTPRequestDoer
		endpoint   string
		closeReq   bool
		header     http.Header
		logger     *slog.Logger
	}
)

// NewHTTPTransport makes a transport that posts to endpoint.
func NewHTTPTransport(endpoint string, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		header:   make(http.Header),
	}
	for _, optionFunc := range opts {
		optionFunc(t)
	}
	if t.httpClient == nil {
		t.httpClient = http.DefaultClient
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return t
}

// WithHTTPClient specifies the underlying client to use when making
// requests.
//
//	NewHTTPTransport(endpoint, WithHTTPClient(specificHTTPClient))
func WithHTTPClient(httpClient HTTPRequestDoer) Option {
	return func(t *HTTPTransport) {
		t.httpClient = httpClient
	}
}

// ImmediatelyCloseReqBody closes the connection after each request.
func ImmediatelyCloseReqBody() Option {
	return func(t *HTTPTransport) {
		t.closeReq = true
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(t *HTTPTransport) {
		t.header.Add(key, value)
	}
}

// WithBearerToken sets the Authorization header.
func WithBearerToken(token string) Option {
	return func(t *HTTPTransport) {
		if token != "" {
			t.header.Set("Authorization", "Bearer "+token)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// Endpoint returns the URL requests are posted to when no path is given.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

func (t *HTTPTransport) resolve(path string) string {
	if path == "" {
		return t.endpoint
	}
	return strings.TrimRight(t.endpoint, "/") + "/" + strings.TrimLeft(path, "/")
}

// Post sends payload and decodes the response envelope. A non-2xx status
// is an error unless the body still decodes to an envelope with GraphQL
// errors, which is then returned as is.
func (t *HTTPTransport) Post(ctx context.Context, path string, payload *graphql.Payload) (*graphql.RawResponse, error) {
	var (
		body        io.Reader
		contentType string
		err         error
	)
	if payload == nil {
		return nil, ErrNoPayload
	}
	if payload.IsMultipart() {
		if body, contentType, err = payload.Form.Encode(); err != nil {
			return nil, err
		}
	} else {
		body = bytes.NewReader(payload.JSON)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.resolve(path), body)
	if err != nil {
		return nil, err
	}
	t.setRequestHeaders(httpReq, payload.Header, contentType)

	start := time.Now()
	httpRes, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpRes.Body.Close()

	t.logger.DebugContext(ctx, "graphql response",
		slog.String("url", httpReq.URL.String()),
		slog.Int("status", httpRes.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	raw, err := io.ReadAll(httpRes.Body)
	if err != nil {
		if !isSuccess(httpRes.StatusCode) {
			return nil, fmt.Errorf("%w: %v", ErrRequest, httpRes.StatusCode)
		}
		return nil, graphql.NewError(err, ErrReadBody)
	}

	var response graphql.RawResponse
	if err = json.Unmarshal(raw, &response); err != nil {
		if !isSuccess(httpRes.StatusCode) {
			return nil, fmt.Errorf("%w: %v", ErrRequest, httpRes.StatusCode)
		}
		return nil, graphql.NewError(err, graphql.ErrDecode)
	}
	if !isSuccess(httpRes.StatusCode) && len(response.Errors) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrRequest, httpRes.StatusCode)
	}
	return &response, nil
}

func (t *HTTPTransport) setRequestHeaders(httpReq *http.Request, header http.Header, contentType string) {
	httpReq.Close = t.closeReq
	for key, values := range t.header {
		for i := range values {
			httpReq.Header.Add(key, values[i])
		}
	}
	for key, values := range header {
		httpReq.Header.Del(key)
		for i := range values {
			httpReq.Header.Add(key, values[i])
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
