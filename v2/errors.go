package graphql

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

var (
	ErrCreateVariablesField = errors.New("create form field")
	ErrEncodeVariablesField = errors.New("encode variables")
	ErrCreateFile           = errors.New("create form file")
	ErrCopy                 = errors.New("copy")
	ErrDecode               = errors.New("decode")
	ErrNoData               = errors.New("no data returned")
	ErrDuplicateFile        = errors.New("file appears at more than one path")
)

const (
	errorName      = "GraphQlError"
	unknownMessage = "unknown error"
)

// Error is the normalized form of the errors array of a GraphQL response.
// Message is the first error's message, Errors holds every raw entry and
// Codes the numeric extensions.code values in the order they appeared.
//
// Use FromError to recover an *Error from a wrapped or rethrown error.
type Error struct {
	Message string
	Errors  gqlerror.List
	Codes   []int

	name  string
	stack error
}

type errorJSON struct {
	Name    string        `json:"name"`
	Message string        `json:"message"`
	Errors  gqlerror.List `json:"errors"`
	Codes   []int         `json:"codes"`
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// NewError wraps err with one of the package sentinels so that both can be
// matched with errors.Is.
func NewError(err error, wrappedErr error) error {
	return errors.WithStack(fmt.Errorf("%w: %w", wrappedErr, err))
}

func newError(message string, list gqlerror.List, codes []int) *Error {
	return &Error{
		Message: message,
		Errors:  list,
		Codes:   codes,
		name:    errorName,
		stack:   errors.New(message),
	}
}

// FromResponse builds an Error from a decoded response. It never returns
// nil: a response without errors yields "unknown error" and empty lists.
func FromResponse[T any](res Response[T]) *Error {
	list := gqlerror.List{}
	codes := []int{}
	message := unknownMessage
	if len(res.Errors) > 0 {
		list = append(list, res.Errors...)
		if res.Errors[0] != nil {
			message = res.Errors[0].Message
		}
		for _, e := range res.Errors {
			if e == nil {
				continue
			}
			if code, ok := extractCode(e.Extensions); ok {
				codes = append(codes, code)
			}
		}
	}
	return newError(message, list, codes)
}

// FromError returns the *Error carried by err, looking through wrapped
// errors, or nil when err is not a GraphQL error.
func FromError(err error) *Error {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return nil
	}
	if e == nil || e.name != errorName {
		return nil
	}
	return e
}

// HasErrorCode reports whether err is a GraphQL error carrying code.
func HasErrorCode(err error, code int) bool {
	e := FromError(err)
	if e == nil {
		return false
	}
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// extractCode reads a non-zero numeric extensions.code.
func extractCode(ext map[string]any) (int, bool) {
	var code int
	switch c := ext["code"].(type) {
	case float64:
		code = int(c)
	case json.Number:
		n, err := c.Int64()
		if err != nil {
			f, ferr := c.Float64()
			if ferr != nil {
				return 0, false
			}
			n = int64(f)
		}
		code = int(n)
	case int:
		code = c
	case int64:
		code = int(c)
	case int32:
		code = int(c)
	default:
		return 0, false
	}
	return code, code != 0
}

func (e *Error) Error() string {
	return "graphql: " + e.Message
}

// StackTrace returns the stack captured when the error was built.
func (e *Error) StackTrace() errors.StackTrace {
	if st, ok := e.stack.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// Format prints the stack trace with %+v, like the errors of
// github.com/pkg/errors.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = io.WriteString(s, e.Error())
			e.StackTrace().Format(s, verb)
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorJSON{
		Name:    e.name,
		Message: e.Message,
		Errors:  e.Errors,
		Codes:   e.Codes,
	})
}

// UnmarshalJSON restores an Error. The decoded value is only recognized by
// FromError when the payload carries the GraphQL error name.
func (e *Error) UnmarshalJSON(b []byte) error {
	var raw errorJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return NewError(err, ErrDecode)
	}
	*e = Error{
		Message: raw.Message,
		Errors:  raw.Errors,
		Codes:   raw.Codes,
	}
	if e.Errors == nil {
		e.Errors = gqlerror.List{}
	}
	if e.Codes == nil {
		e.Codes = []int{}
	}
	if raw.Name == errorName {
		e.name = errorName
		e.stack = errors.New(raw.Message)
	}
	return nil
}
