package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

type (
	// Response is the GraphQL response envelope.
	Response[T any] struct {
		Data   T             `json:"data"`
		Errors gqlerror.List `json:"errors"`
	}

	// RawResponse is the envelope as returned by a Transport, with data
	// left undecoded.
	RawResponse = Response[json.RawMessage]

	// Transport performs the HTTP POST of an encoded payload and decodes the
	// response envelope. Routing, authentication, retries and cancellation
	// are its own business.
	Transport interface {
		Post(ctx context.Context, path string, payload *Payload) (*RawResponse, error)
	}

	// TransportFactory provides a Transport. It is called once per request;
	// any reuse of transports is up to the factory.
	TransportFactory func(ctx context.Context) (Transport, error)

	// QueryFunc runs a query and returns its decoded data.
	QueryFunc[T any] func(ctx context.Context, query Query, variables QueryVariables) (T, error)

	RequesterOption func(*requesterOptions)

	requesterOptions struct {
		logger *slog.Logger
	}

	// Requester runs GraphQL operations whose data decodes into T.
	Requester[T any] struct {
		factory TransportFactory
		logger  *slog.Logger
	}
)

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) RequesterOption {
	return func(o *requesterOptions) {
		o.logger = logger
	}
}

func NewRequester[T any](factory TransportFactory, opts ...RequesterOption) *Requester[T] {
	o := requesterOptions{}
	for _, optionFunc := range opts {
		optionFunc(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Requester[T]{
		factory: factory,
		logger:  o.logger,
	}
}

// MakeClient returns a reusable function that runs queries through
// transports obtained from factory.
func MakeClient[T any](factory TransportFactory, opts ...RequesterOption) QueryFunc[T] {
	return NewRequester[T](factory, opts...).Request
}

// Request encodes query and variables, posts them and decodes the data.
//
// Transport and factory errors are returned unchanged. A response with a
// non-empty errors array yields an *Error, one without data yields
// ErrNoData.
func (r *Requester[T]) Request(ctx context.Context, query Query, variables QueryVariables) (T, error) {
	var result T

	payload, err := BuildRequest(query, variables)
	if err != nil {
		return result, err
	}

	transport, err := r.factory(ctx)
	if err != nil {
		return result, err
	}

	logger := r.logger.With(slog.Bool("multipart", payload.IsMultipart()))
	if payload.IsMultipart() {
		logger = logger.With(slog.Int("files", len(payload.Form.Files)))
	}
	logger.DebugContext(ctx, "posting graphql request")

	res, err := transport.Post(ctx, "", payload)
	if err != nil {
		return result, err
	}
	if res == nil {
		return result, ErrNoData
	}

	if len(res.Errors) > 0 {
		gqlErr := FromResponse(*res)
		logger.DebugContext(ctx, "graphql request failed",
			slog.String("message", gqlErr.Message),
			slog.Any("codes", gqlErr.Codes))
		return result, gqlErr
	}

	if isEmptyData(res.Data) {
		return result, ErrNoData
	}

	if err = json.Unmarshal(res.Data, &result); err != nil {
		return result, NewError(err, ErrDecode)
	}
	return result, nil
}

func isEmptyData(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
