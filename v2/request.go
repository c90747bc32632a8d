package graphql

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	contentTypeJSON = "application/json"
	variablesPrefix = "variables."
)

type (
	// Query is a GraphQL document split into fragments. The fragments are
	// joined with newlines before being sent.
	Query []string

	QueryVariables map[string]any

	// File is an upload embedded anywhere in the variables. It is always
	// treated as a leaf and sent as its own multipart part. Its reader is
	// consumed once, so the same *File must not appear at two paths.
	File struct {
		Name        string
		ContentType string
		R           io.Reader
	}

	// FileMap maps a part index to the dotted variable path the file was
	// found at, as defined by the GraphQL multipart request spec.
	FileMap map[string][]string

	// Payload is an encoded request, ready to hand to a Transport. Exactly
	// one of JSON and Form is set.
	Payload struct {
		JSON   []byte
		Form   *Form
		Header http.Header
	}

	requestQuery struct {
		Query     string `json:"query"`
		Variables any    `json:"variables"`
	}
)

// NewQuery makes a Query from one or more fragments.
func NewQuery(parts ...string) Query {
	return Query(parts)
}

func (q Query) String() string {
	return strings.Join(q, "\n")
}

// NewFile makes a File to be placed in the request variables.
func NewFile(name string, r io.Reader) *File {
	return &File{Name: name, R: r}
}

// IsFile reports whether v is a File or a non-nil *File.
func IsFile(v any) bool {
	switch f := v.(type) {
	case File:
		return true
	case *File:
		return f != nil
	}
	return false
}

func asFile(v any) *File {
	switch f := v.(type) {
	case File:
		return &f
	case *File:
		return f
	}
	return nil
}

// IsMultipart reports whether the payload carries files.
func (p *Payload) IsMultipart() bool {
	return p.Form != nil
}

// ExtractFiles copies variables, replaces every file inside the copy with
// nil and returns the copy together with the file map and the files in
// index order. The caller's variables are never modified. A *File found
// at more than one path yields ErrDuplicateFile.
func ExtractFiles(variables QueryVariables) (any, FileMap, []FormFile, error) {
	if variables == nil {
		return nil, FileMap{}, nil, nil
	}
	var (
		tree      = CloneVariables(variables)
		fileMap   = FileMap{}
		files     []FormFile
		seen      = map[*File]string{}
		duplicate error
	)
	Walk(tree, func(value any, path string) Verdict {
		if !IsFile(value) {
			return Keep
		}
		if f, ok := value.(*File); ok {
			if first, dup := seen[f]; dup {
				if duplicate == nil {
					duplicate = errors.Wrapf(ErrDuplicateFile, "%s and %s", variablesPrefix+first, variablesPrefix+path)
				}
				return Discard
			}
			seen[f] = path
		}
		index := strconv.Itoa(len(files))
		fileMap[index] = []string{variablesPrefix + path}
		files = append(files, FormFile{Field: index, File: asFile(value)})
		return Discard
	})
	if duplicate != nil {
		return nil, nil, nil, duplicate
	}
	return tree, fileMap, files, nil
}

// BuildRequest encodes query and variables. Without files the payload is a
// JSON body; with files it is a multipart form whose content type is left
// for the transport to set along with the boundary.
func BuildRequest(query Query, variables QueryVariables) (*Payload, error) {
	tree, fileMap, files, err := ExtractFiles(variables)
	if err != nil {
		return nil, err
	}

	operations, err := json.Marshal(requestQuery{Query: query.String(), Variables: tree})
	if err != nil {
		return nil, NewError(err, ErrEncodeVariablesField)
	}

	payload := &Payload{Header: make(http.Header)}
	payload.Header.Set("Accept", contentTypeJSON)

	if len(fileMap) == 0 {
		payload.JSON = operations
		payload.Header.Set("Content-Type", contentTypeJSON)
		return payload, nil
	}

	mapField, err := json.Marshal(fileMap)
	if err != nil {
		return nil, errors.Wrap(err, "encode file map")
	}
	payload.Form = &Form{
		Operations: operations,
		Map:        mapField,
		Files:      files,
	}
	return payload, nil
}
