package transport

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/matryer/is"

	"github.com/EVANA-AG/gqlupload/v2/config"
)

func testConfig(endpoint string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.Timeout = 1
	return *cfg
}

func TestNewFactory(t *testing.T) {
	t.Run("should build the transport once", func(t *testing.T) {
		is := is.New(t)
		factory := NewFactory(testConfig("http://localhost/graphql"))

		var (
			wg         sync.WaitGroup
			transports = make([]any, 8)
		)
		for i := range transports {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tr, err := factory(context.Background())
				is.NoErr(err)
				transports[i] = tr
			}(i)
		}
		wg.Wait()

		for i := range transports {
			is.Equal(transports[i], transports[0])
		}
	})

	t.Run("should apply the configuration", func(t *testing.T) {
		is := is.New(t)
		cfg := testConfig("http://localhost/graphql")
		cfg.BearerToken = "secret"
		cfg.Headers = map[string]string{"X-Tenant": "acme"}
		cfg.CloseRequestBody = true

		tr, err := NewFactory(cfg)(context.Background())
		is.NoErr(err)

		httpTransport := tr.(*HTTPTransport)
		is.Equal(httpTransport.Endpoint(), "http://localhost/graphql")
		is.Equal(httpTransport.header.Get("Authorization"), "Bearer secret")
		is.Equal(httpTransport.header.Get("X-Tenant"), "acme")
		is.True(httpTransport.closeReq)
		is.Equal(httpTransport.httpClient.(*http.Client).Timeout.Seconds(), 1.0)
	})

	t.Run("should fail for an invalid configuration on every call", func(t *testing.T) {
		is := is.New(t)
		factory := NewFactory(config.Config{})

		_, err := factory(context.Background())
		is.True(err != nil)
		_, err = factory(context.Background())
		is.True(err != nil)
	})
}
