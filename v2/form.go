package graphql

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/pkg/errors"
)

const (
	operationsField = "operations"
	mapField        = "map"
	defaultFileName = "blob"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type (
	// Form is a multipart request body following the GraphQL multipart
	// request spec.
	Form struct {
		Operations []byte
		Map        []byte
		Files      []FormFile
	}

	// FormFile is one file part, named by its index in the file map.
	FormFile struct {
		Field string
		File  *File
	}
)

// Encode writes the form into a buffer and returns it together with the
// multipart content type carrying the boundary.
func (f *Form) Encode() (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField(operationsField, string(f.Operations)); err != nil {
		return nil, "", NewError(err, ErrCreateVariablesField)
	}
	if err := writer.WriteField(mapField, string(f.Map)); err != nil {
		return nil, "", NewError(err, ErrCreateVariablesField)
	}
	for i := range f.Files {
		part, err := writer.CreatePart(filePartHeader(f.Files[i]))
		if err != nil {
			return nil, "", NewError(err, ErrCreateFile)
		}
		if r := f.Files[i].File.R; r != nil {
			if _, err = io.Copy(part, r); err != nil {
				return nil, "", NewError(err, ErrCopy)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close writer")
	}
	return &body, writer.FormDataContentType(), nil
}

func filePartHeader(ff FormFile) textproto.MIMEHeader {
	name := ff.File.Name
	if name == "" {
		name = defaultFileName
	}
	contentType := ff.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(ff.Field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)
	return h
}
