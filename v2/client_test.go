package graphql

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	postCall struct {
		path    string
		payload *Payload
	}

	fakeTransport struct {
		calls    []postCall
		response string
		err      error
	}

	me struct {
		Me struct {
			ID int `json:"id"`
		} `json:"me"`
	}
)

func (f *fakeTransport) Post(_ context.Context, path string, payload *Payload) (*RawResponse, error) {
	f.calls = append(f.calls, postCall{path: path, payload: payload})
	if f.err != nil {
		return nil, f.err
	}
	var res RawResponse
	if err := json.Unmarshal([]byte(f.response), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func factoryFor(transport Transport, calls *int) TransportFactory {
	return func(context.Context) (Transport, error) {
		*calls++
		return transport, nil
	}
}

func TestRequester(t *testing.T) {
	ctx := context.Background()

	t.Run("should resolve with data", func(t *testing.T) {
		var factoryCalls int
		transport := &fakeTransport{response: `{"data":{"me":{"id":1}}}`}
		client := MakeClient[me](factoryFor(transport, &factoryCalls))

		result, err := client(ctx, NewQuery("query { me }"), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Me.ID)

		require.Len(t, transport.calls, 1)
		assert.Equal(t, "", transport.calls[0].path)
		assert.JSONEq(t, `{"query":"query { me }","variables":null}`, string(transport.calls[0].payload.JSON))
		assert.Equal(t, 1, factoryCalls)
	})

	t.Run("should decode into a generic map", func(t *testing.T) {
		var factoryCalls int
		transport := &fakeTransport{response: `{"data":{"me":{"id":1}}}`}
		client := MakeClient[map[string]any](factoryFor(transport, &factoryCalls))

		result, err := client(ctx, NewQuery("query { me }"), nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"me": map[string]any{"id": 1.0}}, result)
	})

	t.Run("should reject with a graphql error", func(t *testing.T) {
		var factoryCalls int
		transport := &fakeTransport{response: `{"errors":[{"message":"unauthorized","extensions":{"code":401}}]}`}
		client := MakeClient[me](factoryFor(transport, &factoryCalls))

		_, err := client(ctx, NewQuery("query { me }"), nil)
		require.Error(t, err)
		gqlErr := FromError(err)
		require.NotNil(t, gqlErr)
		assert.Equal(t, "unauthorized", gqlErr.Message)
		assert.Contains(t, gqlErr.Codes, 401)
		assert.True(t, HasErrorCode(err, 401))
	})

	t.Run("should treat errors as fatal even with partial data", func(t *testing.T) {
		var factoryCalls int
		transport := &fakeTransport{response: `{"data":{"me":{"id":1}},"errors":[{"message":"partial"}]}`}
		client := MakeClient[me](factoryFor(transport, &factoryCalls))

		_, err := client(ctx, NewQuery("query { me }"), nil)
		gqlErr := FromError(err)
		require.NotNil(t, gqlErr)
		assert.Equal(t, "partial", gqlErr.Message)
	})

	t.Run("should report missing data", func(t *testing.T) {
		for _, response := range []string{`{}`, `{"data":null}`, `{"errors":[]}`} {
			var factoryCalls int
			transport := &fakeTransport{response: response}
			client := MakeClient[me](factoryFor(transport, &factoryCalls))

			_, err := client(ctx, NewQuery("query { me }"), nil)
			assert.ErrorIs(t, err, ErrNoData, response)
			assert.Nil(t, FromError(err), response)
		}
	})

	t.Run("should pass transport errors through unchanged", func(t *testing.T) {
		var factoryCalls int
		transportErr := errors.New("connection refused")
		client := MakeClient[me](factoryFor(&fakeTransport{err: transportErr}, &factoryCalls))

		_, err := client(ctx, NewQuery("query { me }"), nil)
		assert.Same(t, transportErr, err)
		assert.False(t, HasErrorCode(err, 401))
	})

	t.Run("should pass factory errors through unchanged", func(t *testing.T) {
		factoryErr := errors.New("no credentials")
		client := MakeClient[me](func(context.Context) (Transport, error) {
			return nil, factoryErr
		})

		_, err := client(ctx, NewQuery("query { me }"), nil)
		assert.Same(t, factoryErr, err)
	})

	t.Run("should call the factory once per request", func(t *testing.T) {
		var factoryCalls int
		transport := &fakeTransport{response: `{"data":{"me":{"id":1}}}`}
		client := MakeClient[me](factoryFor(transport, &factoryCalls))

		for i := 0; i < 3; i++ {
			_, err := client(ctx, NewQuery("query { me }"), nil)
			require.NoError(t, err)
		}
		assert.Equal(t, 3, factoryCalls)
		assert.Len(t, transport.calls, 3)
	})

	t.Run("should post a multipart payload when variables hold files", func(t *testing.T) {
		var factoryCalls int
		transport := &fakeTransport{response: `{"data":{"me":{"id":2}}}`}
		requester := NewRequester[me](factoryFor(transport, &factoryCalls))

		file := NewFile("avatar.png", strings.NewReader("png"))
		variables := QueryVariables{"input": map[string]any{"avatar": file}}
		result, err := requester.Request(ctx, NewQuery("mutation($input: Input!) { me(input: $input) { id } }"), variables)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Me.ID)

		require.Len(t, transport.calls, 1)
		payload := transport.calls[0].payload
		require.True(t, payload.IsMultipart())
		assert.JSONEq(t, `{"0":["variables.input.avatar"]}`, string(payload.Form.Map))
		assert.Same(t, file, variables["input"].(map[string]any)["avatar"])
	})

	t.Run("should wrap data that does not fit the result type", func(t *testing.T) {
		var factoryCalls int
		transport := &fakeTransport{response: `{"data":{"me":"not an object"}}`}
		client := MakeClient[me](factoryFor(transport, &factoryCalls))

		_, err := client(ctx, NewQuery("query { me }"), nil)
		assert.ErrorIs(t, err, ErrDecode)
	})
}
