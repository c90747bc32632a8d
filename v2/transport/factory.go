package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	graphql "github.com/EVANA-AG/gqlupload/v2"
	"github.com/EVANA-AG/gqlupload/v2/config"
)

// NewFactory returns a TransportFactory that builds one HTTPTransport from
// cfg on first use and hands the same instance to every later call. Extra
// options are applied after the ones derived from cfg.
func NewFactory(cfg config.Config, opts ...Option) graphql.TransportFactory {
	var (
		once      sync.Once
		transport *HTTPTransport
		buildErr  error
	)
	return func(ctx context.Context) (graphql.Transport, error) {
		once.Do(func() {
			if buildErr = cfg.Validate(); buildErr != nil {
				return
			}
			transport = NewHTTPTransport(cfg.Endpoint, append(configOptions(cfg), opts...)...)
		})
		if buildErr != nil {
			return nil, buildErr
		}
		return transport, nil
	}
}

func configOptions(cfg config.Config) []Option {
	opts := []Option{
		WithBearerToken(cfg.BearerToken),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}))
	}
	if cfg.CloseRequestBody {
		opts = append(opts, ImmediatelyCloseReqBody())
	}
	for k, v := range cfg.Headers {
		opts = append(opts, WithHeader(k, v))
	}
	return opts
}
